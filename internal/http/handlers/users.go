package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arseniyrs/userhub/internal/cache"
	"github.com/arseniyrs/userhub/internal/config"
	"github.com/arseniyrs/userhub/internal/domain/user"
	"github.com/arseniyrs/userhub/internal/http/middlewares"
	"github.com/arseniyrs/userhub/internal/observability"
	"github.com/arseniyrs/userhub/internal/security"
	"github.com/arseniyrs/userhub/internal/validation"
)

// UserStore is the directory surface the handlers need; the postgres and
// memory repos both satisfy it.
type UserStore interface {
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, id string, p user.UpdateParams) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

type UsersHandler struct {
	store        UserStore
	jwt          TokenIssuer
	loginLimiter security.LoginLimiter
	users        *cache.TTLCache[user.User]
	prom         *observability.Prom
}

// NewUsersHandler wires the user endpoints. loginLimiter and prom may be
// nil; the handler degrades to unthrottled/unmetered behaviour.
func NewUsersHandler(store UserStore, jwt TokenIssuer, loginLimiter security.LoginLimiter, users *cache.TTLCache[user.User], prom *observability.Prom) *UsersHandler {
	return &UsersHandler{
		store:        store,
		jwt:          jwt,
		loginLimiter: loginLimiter,
		users:        users,
		prom:         prom,
	}
}

// Register handles POST /api/users.
func (h *UsersHandler) Register(ctx *gin.Context) {
	var in validation.RegisterInput

	if !bindUserPayload(ctx, &in) {
		return
	}

	fieldErrors := validation.ValidateRegister(in)

	if !fieldErrors.Empty() {
		h.countRegistration("invalid")
		RespondFieldErrors(ctx, fieldErrors)
		return
	}

	hash, err := security.HashPassword(in.Password)

	if err != nil {
		RespondInternal(ctx, "could not register user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	u, err := h.store.Create(cctx, user.CreateParams{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})

	if err != nil {
		if fe, ok := conflictFieldErrors(err); ok {
			h.countRegistration("conflict")
			RespondFieldErrors(ctx, fe)
			return
		}

		RespondInternal(ctx, "could not register user")
		return
	}

	token, err := h.jwt.Issue(u.ID, u.Username)

	if err != nil {
		RespondInternal(ctx, "could not issue token")
		return
	}

	h.countRegistration("ok")
	RespondUser(ctx, http.StatusCreated, u, token)
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(ctx *gin.Context) {
	var in validation.LoginInput

	if !bindUserPayload(ctx, &in) {
		return
	}

	// Blank credentials get the same combined error as a wrong password.
	if in.Email == "" || in.Password == "" {
		h.countLogin("invalid")
		RespondLoginInvalid(ctx)
		return
	}

	if h.loginLimiter != nil && !h.loginLimiter.Allow(in.Email+"|"+ctx.ClientIP()) {
		h.countLogin("throttled")
		RespondTooManyAttempts(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.store.GetByEmail(cctx, in.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.countLogin("invalid")
			RespondLoginInvalid(ctx)
			return
		}

		RespondInternal(ctx, "could not log in")
		return
	}

	if !security.CheckPassword(u.PasswordHash, in.Password) {
		h.countLogin("invalid")
		RespondLoginInvalid(ctx)
		return
	}

	token, err := h.jwt.Issue(u.ID, u.Username)

	if err != nil {
		RespondInternal(ctx, "could not issue token")
		return
	}

	h.countLogin("ok")
	RespondUser(ctx, http.StatusOK, u, token)
}

// Current handles GET /api/user.
func (h *UsersHandler) Current(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "missing authorization token", nil)
		return
	}

	u, err := h.currentUser(userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// valid signature but the subject vanished: still an auth failure
			RespondUnauthorized(ctx, "token subject no longer exists", nil)
			return
		}

		RespondInternal(ctx, "could not load user")
		return
	}

	token, err := h.jwt.Issue(u.ID, u.Username)

	if err != nil {
		RespondInternal(ctx, "could not issue token")
		return
	}

	RespondUser(ctx, http.StatusOK, u, token)
}

// UpdateCurrent handles PUT /api/user.
func (h *UsersHandler) UpdateCurrent(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "missing authorization token", nil)
		return
	}

	var in validation.UpdateInput

	if !bindUserPayload(ctx, &in) {
		return
	}

	fieldErrors := validation.ValidateUpdate(in)

	if !fieldErrors.Empty() {
		RespondFieldErrors(ctx, fieldErrors)
		return
	}

	params := in.UpdateParams()

	if in.Password != nil {
		hash, err := security.HashPassword(*in.Password)

		if err != nil {
			RespondInternal(ctx, "could not update user")
			return
		}

		params.PasswordHash = &hash
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	if params.Empty() {
		// nothing to change; echo the current profile
		u, err := h.store.GetByID(cctx, userID)

		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				RespondNotFound(ctx, "user no longer exists")
				return
			}

			RespondInternal(ctx, "could not load user")
			return
		}

		h.respondWithFreshToken(ctx, u)
		return
	}

	u, err := h.store.Update(cctx, userID, params)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user no longer exists")
			return
		}

		if fe, ok := conflictFieldErrors(err); ok {
			RespondFieldErrors(ctx, fe)
			return
		}

		RespondInternal(ctx, "could not update user")
		return
	}

	if h.users != nil {
		h.users.Set(cacheKey(u.ID), u)
	}

	h.respondWithFreshToken(ctx, u)
}

func (h *UsersHandler) respondWithFreshToken(ctx *gin.Context, u user.User) {
	token, err := h.jwt.Issue(u.ID, u.Username)

	if err != nil {
		RespondInternal(ctx, "could not issue token")
		return
	}

	RespondUser(ctx, http.StatusOK, u, token)
}

func (h *UsersHandler) currentUser(userID string) (user.User, error) {
	key := cacheKey(userID)

	if h.users != nil {
		if u, ok := h.users.Get(key); ok {
			return u, nil
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	u, err := h.store.GetByID(cctx, userID)

	if err != nil {
		return user.User{}, err
	}

	if h.users != nil {
		h.users.Set(key, u)
	}

	return u, nil
}

func cacheKey(userID string) string {
	return "user:" + userID
}

func (h *UsersHandler) countLogin(result string) {
	if h.prom != nil {
		h.prom.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func (h *UsersHandler) countRegistration(result string) {
	if h.prom != nil {
		h.prom.RegistrationsTotal.WithLabelValues(result).Inc()
	}
}

// conflictFieldErrors maps a directory uniqueness conflict onto the wire
// shape as a field error rather than a distinct conflict status.
func conflictFieldErrors(err error) (validation.FieldErrors, bool) {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		return validation.FieldErrors{"email": {validation.MsgTaken}}, true
	case errors.Is(err, user.ErrUsernameTaken):
		return validation.FieldErrors{"username": {validation.MsgTaken}}, true
	default:
		return nil, false
	}
}
