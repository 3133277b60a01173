package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	user, pass string
}

func (a staticAuth) Authenticate(username, password string) error {
	if username == a.user && password == a.pass {
		return nil
	}
	return errors.New("denied")
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logging(), Metrics())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/", BasicAuth(staticAuth{"user", "password"}))
	api.GET("/models/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextKeyUser), "request_id": c.GetString(ContextKeyID)})
	})
	api.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine()

	req, _ := http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req, _ = http.NewRequest("GET", "/healthz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	req, _ = http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("req-1"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("has space"))
	assert.False(t, validRequestID("tab\there"))
	assert.False(t, validRequestID("ünicode"))
}

func TestBasicAuth(t *testing.T) {
	r := newEngine()

	req, _ := http.NewRequest("GET", "/models/m1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Basic", w.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"detail":"Incorrect username or password"}`, w.Body.String())

	req, _ = http.NewRequest("GET", "/models/m1", nil)
	req.SetBasicAuth("user", "password")
	req.Header.Set("X-Request-ID", "req-7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"user","request_id":"req-7"}`, w.Body.String())
}

func TestLogging_LevelFollowsStatus(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	r := newEngine()

	req, _ := http.NewRequest("GET", "/boom", nil)
	req.SetBasicAuth("user", "password")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "user", entry.Data["user"])
	assert.Equal(t, "/boom", entry.Data["route"])

	req, _ = http.NewRequest("GET", "/models/m1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	req, _ = http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
