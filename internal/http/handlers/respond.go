package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arseniyrs/userhub/internal/domain/user"
	"github.com/arseniyrs/userhub/internal/validation"
)

// userEnvelope is the fixed success shape shared by every user endpoint.
// bio and image serialize as null until the profile sets them.
type userEnvelope struct {
	User userBody `json:"user"`
}

type userBody struct {
	Bio      *string `json:"bio"`
	Email    string  `json:"email"`
	Image    *string `json:"image"`
	Token    string  `json:"token"`
	Username string  `json:"username"`
}

func RespondUser(ctx *gin.Context, status int, u user.User, token string) {
	ctx.JSON(status, userEnvelope{
		User: userBody{
			Bio:      u.Bio,
			Email:    u.Email,
			Image:    u.Image,
			Token:    token,
			Username: u.Username,
		},
	})
}

// RespondFieldErrors renders a 422 with the validator's field-error map.
func RespondFieldErrors(ctx *gin.Context, fe validation.FieldErrors) {
	ctx.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fe})
}

// RespondLoginInvalid collapses unknown email and wrong password into one
// message so the endpoint cannot be used to enumerate accounts.
func RespondLoginInvalid(ctx *gin.Context) {
	ctx.JSON(http.StatusUnprocessableEntity, gin.H{
		"errors": gin.H{
			"email or password": []string{validation.MsgInvalid},
		},
	})
}

func RespondUnauthorized(ctx *gin.Context, message string, detail gin.H) {
	if detail == nil {
		detail = gin.H{"name": "UnauthorizedError"}
	}

	ctx.JSON(http.StatusUnauthorized, gin.H{
		"errors": gin.H{
			"message": message,
			"error":   detail,
		},
	})
}

func RespondNotFound(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusNotFound, gin.H{
		"errors": gin.H{
			"message": message,
			"error":   gin.H{"name": "NotFoundError"},
		},
	})
}

func RespondTooManyAttempts(ctx *gin.Context) {
	ctx.JSON(http.StatusTooManyRequests, gin.H{
		"errors": gin.H{
			"message": "too many login attempts, please try again later",
			"error":   gin.H{"name": "RateLimitError"},
		},
	})
}

func RespondInternal(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusInternalServerError, gin.H{
		"errors": gin.H{
			"message": message,
			"error":   gin.H{"name": "InternalError"},
		},
	})
}
