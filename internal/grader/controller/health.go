package controller

import (
	"context"
	"net/http"
	"sort"
	"time"

	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// healthHandler answers 204 when every check passes and 503 listing the
// failing dependencies otherwise.
func healthHandler(checks map[string]HealthCheck, timeout time.Duration) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var failed *appErr.Error
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				if failed == nil {
					failed = appErr.New(appErr.ServiceUnavailable).WithMessage("dependency unhealthy")
				}
				failed.WithDetail(name, err.Error())
			}
		}
		if failed != nil {
			response.Error(c, failed)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
