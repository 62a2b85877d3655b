// internal/interfaces/http/handlers/response.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/inventory-ledger/internal/pkg/apperror"
)

// respondError maps an error to its status and the common error body
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	if appErr, ok := apperror.As(err); ok {
		body := gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		c.JSON(appErr.HTTPStatus(), body)
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": "Request timeout",
			"code":  "TIMEOUT",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(499, gin.H{
			"error": "Request cancelled",
			"code":  "CANCELLED",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  apperror.CodeInternal,
		})
	}
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"code":    apperror.CodeValidation,
		"details": gin.H{"body": err.Error()},
	})
}

func pathUint(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, apperror.Validation("invalid %s", name).WithDetail("field", name)
	}
	return uint(v), nil
}

// queryUint reads an optional positive integer; absent means 0
func queryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperror.Validation("invalid %s %q", name, raw).WithDetail("field", name)
	}
	return uint(v), nil
}

// queryInt reads an optional non-negative integer
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperror.Validation("invalid %s %q", name, raw).WithDetail("field", name)
	}
	return v, nil
}

// firstQueryUint returns the first of names that is present
func firstQueryUint(c *gin.Context, names ...string) (uint, error) {
	for _, name := range names {
		if c.Query(name) == "" {
			continue
		}
		return queryUint(c, name)
	}
	return 0, nil
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
