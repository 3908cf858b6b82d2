package httphelper

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/log"
	"github.com/gin-gonic/gin"
)

var (
	ErrBadRequest      = errors.New("invalid request")
	ErrParamKeyMissing = errors.New("param key not found")
	ErrParamParse      = errors.New("failed to parse param value")
	ErrParamInvalid    = errors.New("param value invalid")
	ErrTooManyRequests = errors.New("too many requests")
)

func NewAPIErrorf(code int, err error, message string, args ...any) APIError {
	apiErr := NewAPIError(code, err)
	apiErr.Detail = fmt.Sprintf(message, args...)

	return apiErr
}

func NewAPIError(code int, err error) APIError {
	apiErr := APIError{
		err:       err,
		Status:    code,
		Type:      "about:blank",
		Timestamp: time.Now(),
	}

	e, ok := err.(interface{ Unwrap() []error })
	if ok {
		// Error was wrapped with errors.Join(), so we want to only show the very last error, which should be one of our
		// common sentinel errors that is safe for showing and wont expose any internal details.
		wrappedErrs := e.Unwrap()
		if len(wrappedErrs) > 0 {
			apiErr.Title = wrappedErrs[len(wrappedErrs)-1].Error()
		}

		return apiErr
	}

	apiErr.Title = err.Error()

	return apiErr
}

// APIError implements https://www.rfc-editor.org/rfc/rfc9457.html
// application/problem+json.
type APIError struct {
	err       error
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    int       `json:"status"`
	Detail    string    `json:"detail"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
}

func (e APIError) Error() string {
	if e.err == nil {
		// Its just a simple validation error, which does not have any wrapped errors.
		return e.Title
	}

	return e.err.Error()
}

func (e APIError) Unwrap() error {
	return e.err
}

// SetError handles sending the error to the error handler middleware. You should return
// from the handler after calling this.
func SetError(ctx *gin.Context, err APIError) {
	err.Instance = ctx.Request.URL.Path

	_ = ctx.Error(err)
}

// HandleErr maps errors returned from the services onto their http status. Callers should return
// from the handler after calling this.
func HandleErr(ctx *gin.Context, err error) {
	var rateLimit domain.RateLimitError

	switch {
	case errors.As(err, &rateLimit):
		SetRetryAfter(ctx, rateLimit.RetryAfter)
		SetError(ctx, NewAPIErrorf(http.StatusTooManyRequests, errors.Join(err, domain.ErrRateLimited),
			"Upstream provider is rate limiting requests, retry after %s", rateLimit.RetryAfter))
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, database.ErrNoResult):
		SetError(ctx, NewAPIError(http.StatusNotFound, errors.Join(err, domain.ErrNotFound)))
	case errors.Is(err, domain.ErrBanned):
		SetError(ctx, NewAPIError(http.StatusConflict, errors.Join(err, domain.ErrBanned)))
	case errors.Is(err, domain.ErrAlreadyLinked):
		SetError(ctx, NewAPIError(http.StatusConflict, errors.Join(err, domain.ErrAlreadyLinked)))
	case errors.Is(err, domain.ErrConflict):
		SetError(ctx, NewAPIError(http.StatusConflict, errors.Join(err, domain.ErrConflict)))
	case errors.Is(err, domain.ErrIntegrity), errors.Is(err, database.ErrIntegrity), errors.Is(err, database.ErrDuplicate):
		SetError(ctx, NewAPIError(http.StatusConflict, errors.Join(err, domain.ErrIntegrity)))
	case errors.Is(err, domain.ErrUnauthorized):
		SetError(ctx, NewAPIError(http.StatusUnauthorized, errors.Join(err, domain.ErrUnauthorized)))
	case errors.Is(err, domain.ErrValidation):
		SetError(ctx, NewAPIError(http.StatusBadRequest, errors.Join(err, domain.ErrValidation)))
	default:
		slog.Error("Unhandled service error", log.ErrAttr(err), slog.String("path", ctx.Request.URL.Path))
		SetError(ctx, NewAPIError(http.StatusInternalServerError, errors.Join(err, domain.ErrInternal)))
	}
}

// SetRetryAfter sets the Retry-After header rounded up to whole seconds.
func SetRetryAfter(ctx *gin.Context, after time.Duration) {
	ctx.Header("Retry-After", strconv.Itoa(int(math.Ceil(after.Seconds()))))
}
