package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arseniyrs/userhub/internal/auth"
	"github.com/arseniyrs/userhub/internal/domain/user"
	"github.com/arseniyrs/userhub/internal/http/handlers"
	"github.com/arseniyrs/userhub/internal/http/middlewares"
	"github.com/arseniyrs/userhub/internal/security"
)

// Keep Gin quiet during tests.
func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementation of the handlers.UserStore interface.

type fakeUserStore struct {
	createFn     func(ctx context.Context, p user.CreateParams) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id string) (user.User, error)
	updateFn     func(ctx context.Context, id string, p user.UpdateParams) (user.User, error)
}

func (f *fakeUserStore) Create(ctx context.Context, p user.CreateParams) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p)
	}
	return user.User{}, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUserStore) Update(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, p)
	}
	return user.User{}, user.ErrNotFound
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func newJWT() *auth.Manager {
	return auth.NewManager("test-secret", time.Hour)
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()

	hash, err := security.HashPassword(plain)

	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	return hash
}

func newRouter(h *handlers.UsersHandler, jwt *auth.Manager) *gin.Engine {
	r := gin.New()

	authMiddleware := middlewares.NewAuthMiddleware(jwt)

	r.POST("/api/users", h.Register)
	r.POST("/api/users/login", h.Login)
	r.GET("/api/user", authMiddleware.RequireAuth(), h.Current)
	r.PUT("/api/user", authMiddleware.RequireAuth(), h.UpdateCurrent)

	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any

	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to unmarshal body %q: %v", w.Body.String(), err)
	}

	return out
}

func TestRegister_Success(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		createFn: func(ctx context.Context, p user.CreateParams) (user.User, error) {
			if p.PasswordHash == "" || p.PasswordHash == "password123" {
				t.Fatalf("password must reach the store hashed, got %q", p.PasswordHash)
			}
			return user.User{ID: "id-1", Username: p.Username, Email: p.Email, PasswordHash: p.PasswordHash}, nil
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodPost, "/api/users",
		`{"user":{"username":"sam","email":"sam@example.com","password":"password123"}}`, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	u, ok := body["user"].(map[string]any)

	if !ok {
		t.Fatalf("response missing user object: %v", body)
	}

	if u["email"] != "sam@example.com" || u["username"] != "sam" {
		t.Fatalf("user identity mismatch: %v", u)
	}

	if u["bio"] != nil || u["image"] != nil {
		t.Fatalf("bio/image must be null for a fresh user: %v", u)
	}

	token, _ := u["token"].(string)

	userID, err := jwt.Verify(token)

	if err != nil || userID != "id-1" {
		t.Fatalf("issued token must verify back to the user: id=%q err=%v", userID, err)
	}
}

func TestRegister_EmptyPayload(t *testing.T) {
	jwt := newJWT()
	store := &fakeUserStore{}
	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodPost, "/api/users", `{"user":{}}`, nil)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	body := decodeBody(t, w)
	errs, ok := body["errors"].(map[string]any)

	if !ok {
		t.Fatalf("response missing errors object: %v", body)
	}

	for _, field := range []string{"email", "password", "username"} {
		msgs, ok := errs[field].([]any)

		if !ok || len(msgs) != 1 || msgs[0] != "can't be blank" {
			t.Fatalf("errors[%s] = %v, want [can't be blank]", field, errs[field])
		}
	}

	if len(errs) != 3 {
		t.Fatalf("expected exactly three error keys, got %v", errs)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		createFn: func(ctx context.Context, p user.CreateParams) (user.User, error) {
			return user.User{}, user.ErrEmailTaken
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodPost, "/api/users",
		`{"user":{"username":"sam","email":"sam@example.com","password":"password123"}}`, nil)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	body := decodeBody(t, w)
	errs := body["errors"].(map[string]any)
	msgs, ok := errs["email"].([]any)

	if !ok || len(msgs) != 1 || msgs[0] != "has already been taken" {
		t.Fatalf("errors[email] = %v, want [has already been taken]", errs["email"])
	}
}

func TestLogin_UnknownEmailAndWrongPassword(t *testing.T) {
	jwt := newJWT()

	hashed := mustHash(t, "right-password")

	store := &fakeUserStore{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			if email == "known@example.com" {
				return user.User{ID: "id-1", Username: "sam", Email: email, PasswordHash: hashed}, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	cases := []string{
		`{"user":{"email":"nobody@example.com","password":"whatever"}}`,
		`{"user":{"email":"known@example.com","password":"wrong-password"}}`,
		`{"user":{}}`,
	}

	for _, payload := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/users/login", payload, nil)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422, payload=%s", w.Code, payload)
		}

		body := decodeBody(t, w)
		errs := body["errors"].(map[string]any)
		msgs, ok := errs["email or password"].([]any)

		if !ok || len(msgs) != 1 || msgs[0] != "is invalid" {
			t.Fatalf("errors = %v, want {email or password: [is invalid]}", errs)
		}

		if len(errs) != 1 {
			t.Fatalf("login failure must expose exactly one error key, got %v", errs)
		}
	}
}

func TestLogin_Success(t *testing.T) {
	jwt := newJWT()

	hashed := mustHash(t, "password123")

	store := &fakeUserStore{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return user.User{ID: "id-9", Username: "sam", Email: email, PasswordHash: hashed}, nil
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodPost, "/api/users/login",
		`{"user":{"email":"sam@example.com","password":"password123"}}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	u := body["user"].(map[string]any)

	userID, err := jwt.Verify(u["token"].(string))

	if err != nil || userID != "id-9" {
		t.Fatalf("login token must verify to the user: id=%q err=%v", userID, err)
	}
}

func TestLogin_Throttled(t *testing.T) {
	jwt := newJWT()
	store := &fakeUserStore{}

	h := handlers.NewUsersHandler(store, jwt, denyAllLimiter{}, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodPost, "/api/users/login",
		`{"user":{"email":"sam@example.com","password":"password123"}}`, nil)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestCurrent_InvalidToken(t *testing.T) {
	jwt := newJWT()
	store := &fakeUserStore{}
	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	w := doJSON(t, r, http.MethodGet, "/api/user", "", map[string]string{
		"Authorization": "Token 123",
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	body := decodeBody(t, w)
	errs, ok := body["errors"].(map[string]any)

	if !ok {
		t.Fatalf("response missing errors object: %v", body)
	}

	if _, ok := errs["message"].(string); !ok {
		t.Fatalf("errors.message must be a string, got %v", errs["message"])
	}

	if _, ok := errs["error"].(map[string]any); !ok {
		t.Fatalf("errors.error must be an object, got %v", errs["error"])
	}
}

func TestCurrent_SubjectVanished(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		getByIDFn: func(ctx context.Context, id string) (user.User, error) {
			return user.User{}, user.ErrNotFound
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	token, err := jwt.Issue("ghost", "ghost")

	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/user", "", map[string]string{
		"Authorization": "Token " + token,
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUpdateCurrent_NotFoundAfterUpdate(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		updateFn: func(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
			return user.User{}, user.ErrNotFound
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	token, err := jwt.Issue("gone", "gone")

	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	w := doJSON(t, r, http.MethodPut, "/api/user",
		`{"user":{"bio":"new bio"}}`, map[string]string{"Authorization": "Token " + token})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateCurrent_UsernameConflict(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		updateFn: func(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
			return user.User{}, user.ErrUsernameTaken
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	token, err := jwt.Issue("id-1", "sam")

	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	w := doJSON(t, r, http.MethodPut, "/api/user",
		`{"user":{"username":"taken"}}`, map[string]string{"Authorization": "Token " + token})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	body := decodeBody(t, w)
	errs := body["errors"].(map[string]any)
	msgs, ok := errs["username"].([]any)

	if !ok || len(msgs) != 1 || msgs[0] != "has already been taken" {
		t.Fatalf("errors[username] = %v, want [has already been taken]", errs["username"])
	}
}

func TestUpdateCurrent_IgnoresUnknownFields(t *testing.T) {
	jwt := newJWT()

	store := &fakeUserStore{
		updateFn: func(ctx context.Context, id string, p user.UpdateParams) (user.User, error) {
			bio := "ok"
			return user.User{ID: id, Username: "sam", Email: "sam@example.com", Bio: &bio}, nil
		},
	}

	h := handlers.NewUsersHandler(store, jwt, nil, nil, nil)
	r := newRouter(h, jwt)

	token, err := jwt.Issue("id-1", "sam")

	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	w := doJSON(t, r, http.MethodPut, "/api/user",
		`{"user":{"bio":"ok","favoriteColor":"teal"}}`, map[string]string{"Authorization": "Token " + token})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
}
