package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fsmodels/internal/model"
	"fsmodels/internal/store"
)

type FieldError struct {
	Code    string         `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Коды ошибок уровня API; коды валидации берутся из model.Kind
const (
	ErrEntityNotFound   = "entity_not_found"
	ErrNotFound         = "not_found"
	ErrRefNotFound      = "ref_not_found"
	ErrInvalidJSON      = "invalid_json"
	ErrStoreUnavailable = "store_unavailable"
	ErrInternal         = "internal"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// httpError — готовый ответ c кодом статуса.
type httpError struct {
	status int
	errs   []FieldError
}

func (e *httpError) Error() string {
	if len(e.errs) == 0 {
		return http.StatusText(e.status)
	}
	return fmt.Sprintf("%d: %s", e.status, e.errs[0].Message)
}

func newHTTPError(status int, errs ...FieldError) *httpError {
	return &httpError{status: status, errs: errs}
}

// fieldErrors — плоский список с путями "publisher.name".
func fieldErrors(ve *model.ValidationError) []FieldError {
	flat := model.Flatten(ve.Errors)
	out := make([]FieldError, 0, len(flat))
	for _, fe := range flat {
		out = append(out, FieldError{Code: string(fe.Kind), Field: fe.Field, Message: fe.Message, Detail: fe.Detail})
	}
	return out
}

// writeError переводит ошибку persist/store/model в JSON-ответ.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		he   *httpError
		ve   *model.ValidationError
		kind model.Kind
	)
	switch {
	case errors.As(err, &he):
		c.JSON(he.status, gin.H{"errors": he.errs})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors(ve)})
	case errors.As(err, &kind):
		c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(string(kind), "", err.Error())}})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"errors": []FieldError{ferr(ErrStoreUnavailable, "", err.Error())}})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "", err.Error())}})
	default:
		s.log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"errors": []FieldError{ferr(ErrInternal, "", "internal error")}})
	}
}
