package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// payload is the {"user": {...}} wrapper every write endpoint speaks.
type payload[T any] struct {
	User T `json:"user"`
}

// bindUserPayload decodes the wrapped body into out. Unknown fields are
// dropped, an empty body decodes to the zero value (PUT without a body is a
// no-op update), and anything unparsable is a 422 on the body itself.
func bindUserPayload[T any](ctx *gin.Context, out *T) bool {
	var p payload[T]

	err := ctx.ShouldBindJSON(&p)

	if err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"errors": gin.H{
				"body": []string{"is invalid"},
			},
		})

		return false
	}

	*out = p.User

	return true
}
