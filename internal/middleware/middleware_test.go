package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) (*gin.Engine, *string) {
	var captured string
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		captured = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r, &captured
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	r, captured := newRouter(RequestID())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, *captured)
	assert.Equal(t, *captured, rec.Header().Get(HeaderRequestID))
}

func TestRequestID_PreservesValidID(t *testing.T) {
	r, captured := newRouter(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "custom-id-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "custom-id-123", *captured)
	assert.Equal(t, "custom-id-123", rec.Header().Get(HeaderRequestID))
}

func TestRequestID_RejectsInvalidIDs(t *testing.T) {
	tests := []struct {
		name     string
		headerID string
		wantNew  bool
	}{
		{"valid alphanumeric with hyphens", "abc-123_DEF", false},
		{"log forging with newline", "fake-id\nINJECTED: malicious", true},
		{"contains spaces", "id with spaces", true},
		{"contains markup", "id<script>alert(1)</script>", true},
		{"too long", strings.Repeat("a", 129), true},
		{"max length", strings.Repeat("a", 128), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, captured := newRouter(RequestID())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.headerID)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if tt.wantNew {
				assert.NotEqual(t, tt.headerID, *captured)
				assert.Len(t, *captured, 36)
			} else {
				assert.Equal(t, tt.headerID, *captured)
			}
		})
	}
}

func TestLogger_IncludesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, _ := newRouter(RequestID(), Logger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, zap.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "/", fields["path"])
}

func TestLogger_LogsGeneratedRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, _ := newRouter(RequestID(), Logger(zap.New(core)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	id := rec.Header().Get(HeaderRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, logs.All()[0].ContextMap()["request_id"])
}

func TestLogger_ServerErrorAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, _ := newRouter(Logger(zap.New(core)))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestCORS(t *testing.T) {
	r, _ := newRouter(CORS("http://a.example, http://b.example"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://b.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://b.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, HeaderRequestID, rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_WildcardAndPreflight(t *testing.T) {
	r, _ := newRouter(CORS("*"))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://any.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
