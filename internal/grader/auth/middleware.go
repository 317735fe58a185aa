package auth

import (
	"context"
	"strings"

	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/contextkey"
	"examgrader/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const userContextKey = "grader_user"

// Middleware rejects requests without a valid bearer token. With staffOnly
// set, non-staff callers get 403.
func Middleware(verifier *Verifier, disabled, staffOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var info UserInfo
		if disabled {
			info = UserInfo{ID: "anonymous", Role: RoleStaff}
		} else {
			if verifier == nil {
				response.AbortWithErrorCode(c, appErr.ServiceUnavailable, "auth is not configured")
				return
			}
			var err error
			info, err = verifier.Verify(extractBearerToken(c.GetHeader("Authorization")))
			if err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if staffOnly && !info.IsStaff() {
			response.AbortWithErrorCode(c, appErr.Forbidden, "staff role required")
			return
		}
		c.Set(userContextKey, info)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, info.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserFrom returns the caller stored by Middleware.
func UserFrom(c *gin.Context) (UserInfo, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return UserInfo{}, false
	}
	info, ok := v.(UserInfo)
	return info, ok
}

func extractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
