package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/battos/battdiag/pkg/diagerr"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail     string       `json:"detail"`
	StatusCode int          `json:"status_code"`
	Kind       diagerr.Kind `json:"kind,omitempty"`
	Field      string       `json:"field,omitempty"`
	Actual     any          `json:"actual,omitempty"`
	Bound      any          `json:"bound,omitempty"`
}

func abortWithStatus(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Detail:     detail,
		StatusCode: status,
	})
}

// abortWithDomainError maps a domain error to 400 and anything else to 500.
// Internal errors are recorded on the context for the request logger and
// never shown to the client.
func abortWithDomainError(c *gin.Context, err error) {
	if de, ok := diagerr.As(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Detail:     de.Msg,
			StatusCode: http.StatusBadRequest,
			Kind:       de.Kind,
			Field:      de.Field,
			Actual:     de.Actual,
			Bound:      de.Bound,
		})
		return
	}

	_ = c.Error(err)
	abortWithStatus(c, http.StatusInternalServerError, "Internal server error")
}

// abortWithBindError answers a body that could not be bound with 422.
func abortWithBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	abortWithStatus(c, http.StatusUnprocessableEntity, bindErrorDetail(err))
}

func bindErrorDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, jsonFieldName(fe.Field()))
		}
		return "missing required fields: " + strings.Join(missing, ", ")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %s must be of type %s", typeErr.Field, typeErr.Type.String())
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "malformed JSON body"
	}
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}

	return err.Error()
}

// jsonFieldName turns a Go field name into its camelCase JSON name.
func jsonFieldName(goName string) string {
	if goName == "" {
		return ""
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}
