package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"examgrader/internal/common/http/middleware"
	"examgrader/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

func TestTraceContextPropagatesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.TraceContext(), middleware.AccessLog())

	var seenTrace, seenRequest interface{}
	r.GET("/ping", func(c *gin.Context) {
		seenTrace = c.Request.Context().Value(contextkey.TraceID)
		seenRequest = c.Request.Context().Value(contextkey.RequestID)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.TraceIDHeader, "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(middleware.TraceIDHeader); got != "trace-1" {
		t.Fatalf("trace header = %q", got)
	}
	if seenTrace != "trace-1" {
		t.Fatalf("trace in context = %v", seenTrace)
	}
	generated := w.Header().Get(middleware.RequestIDHeader)
	if generated == "" || seenRequest != generated {
		t.Fatalf("request id mismatch: header %q, context %v", generated, seenRequest)
	}
}
