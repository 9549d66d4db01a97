package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genovault/genovault/internal/common"
)

// statusFor maps the sentinel taxonomy onto HTTP status codes. Unmapped
// errors collapse to 500 with a generic message; internals never leak.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrIneligibleGrantee):
		return http.StatusForbidden, "grantee not eligible"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrNoActiveGrant):
		return http.StatusNotFound, "no active grant"
	case errors.Is(err, common.ErrAlreadyGranted):
		return http.StatusConflict, "grant already active"
	case errors.Is(err, common.ErrInvalidExpiry):
		return http.StatusBadRequest, "invalid expiry"
	case errors.Is(err, common.ErrInvalidAccess):
		return http.StatusBadRequest, "invalid access level"
	case errors.Is(err, common.ErrMalformedContent):
		return http.StatusBadRequest, "malformed content"
	case errors.Is(err, common.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported media type"
	case errors.Is(err, common.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "payload too large"
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable"
	case errors.Is(err, common.ErrDependencyTimeout):
		return http.StatusGatewayTimeout, "dependency timeout"
	case errors.Is(err, common.ErrIntegrityViolation):
		return http.StatusBadGateway, "integrity check failed"
	case errors.Is(err, common.ErrDecryptionFailed):
		return http.StatusInternalServerError, "decryption failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
