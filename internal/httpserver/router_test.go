package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no database configured")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/healthz", "", "")

	rec := env.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}

func TestBuildRouterRequiresServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logDiscard()
	_, err := buildRouter(logger, nil, Deps{})
	assert.Error(t, err)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.KindUnauthorized, errorCode(t, rec))

	rec = env.do(http.MethodGet, "/me", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/me", aliceToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"alice@example.com"`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
}

func TestSignupAndToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/signup", "", `{"email":"user@example.com","password":"Abcdefg1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"user@example.com"`)

	env.users.signupErr = domain.Conflict("user.Signup", "email user@example.com is already registered")
	rec = env.do(http.MethodPost, "/auth/signup", "", `{"email":"user@example.com","password":"Abcdefg1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	form := "grant_type=password&username=user%40example.com&password=Abcdefg1"
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[tokenResponse](t, rec)
	assert.Equal(t, aliceToken, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3600, tok.ExpiresIn)

	env.users.loginErr = domain.Unauthorized("user.Login", "invalid credentials")
	rec = env.do(http.MethodPost, "/auth/token", "", `{"grant_type":"password","username":"u","password":"p"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/token", "", `{"grant_type":"client_credentials","username":"u","password":"p"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/logout", bobToken, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/me", bobToken, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusForKinds(t *testing.T) {
	cases := map[domain.Kind]int{
		domain.KindNotFound:         http.StatusNotFound,
		domain.KindInvalidOperation: http.StatusUnprocessableEntity,
		domain.KindInvalidInput:     http.StatusBadRequest,
		domain.KindConflict:         http.StatusConflict,
		domain.KindUnauthorized:     http.StatusUnauthorized,
		domain.KindForbidden:        http.StatusForbidden,
		domain.KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := logDiscard()
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		writeError(c, logger, domain.Internal(errors.New("password=hunter2"), "test.Boom", "boom"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Equal(t, "internal error", decode[errorBody](t, rec).Error.Message)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logDiscard()
	router := gin.New()
	router.Use(requestLogger(logger), gin.CustomRecovery(recoveryHandler(logger)))
	router.GET("/panic", func(*gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.KindInternal, errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	logger, _ := logDiscard()
	deps := env.deps
	deps.CORSOrigins = []string{"https://shop.example.com"}
	router, err := buildRouter(logger, nil, deps)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
