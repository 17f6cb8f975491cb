package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/config"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/jwtutil"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testInternalToken = "internal-secret"

func newTestResolver(t *testing.T) (*Resolver, *jwtutil.JWTUtil) {
	t.Helper()
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	tenancy := &config.TenancyConfig{
		MasterSchema:       "master",
		TenantSchemaPrefix: "clinic_",
		DefaultTenant:      "master",
		PublicPathPrefixes: []string{"/public", "/signup"},
		InternalAPIToken:   testInternalToken,
	}
	return NewResolver(tenancy, jwt), jwt
}

func newEchoContext(method, path string, headers map[string]string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestResolveInternalHeaderWinsOverEverything(t *testing.T) {
	r, jwt := newTestResolver(t)

	token, err := jwt.GenerateToken("doc@acme.test", 1, "tokenclinic", "homeclinic", "admin")
	require.NoError(t, err)

	c := newEchoContext(http.MethodGet, "/api/doctors", map[string]string{
		HeaderClinicID:      "headerclinic",
		HeaderInternalToken: testInternalToken,
		"Authorization":     "Bearer " + token,
	})

	res, err := r.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "headerclinic", res.ClientID)
	assert.Equal(t, SourceHeader, res.Source)
}

func TestResolveHeaderIgnoredWithoutInternalToken(t *testing.T) {
	r, jwt := newTestResolver(t)

	token, err := jwt.GenerateToken("doc@acme.test", 1, "tokenclinic", "", "admin")
	require.NoError(t, err)

	c := newEchoContext(http.MethodGet, "/api/doctors", map[string]string{
		HeaderClinicID:  "headerclinic",
		"Authorization": "Bearer " + token,
	})

	res, err := r.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "tokenclinic", res.ClientID)
	assert.Equal(t, SourceToken, res.Source)
}

func TestResolveFallsBackToHomeClinic(t *testing.T) {
	r, jwt := newTestResolver(t)

	token, err := jwt.GenerateToken("doc@acme.test", 1, "", "homeclinic", "member")
	require.NoError(t, err)

	c := newEchoContext(http.MethodGet, "/api/doctors", map[string]string{
		"Authorization": "Bearer " + token,
	})

	res, err := r.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "homeclinic", res.ClientID)
	assert.Equal(t, SourceHome, res.Source)
}

func TestResolvePublicPathGetsDefaultTenant(t *testing.T) {
	r, _ := newTestResolver(t)

	c := newEchoContext(http.MethodPost, "/signup", nil)

	res, err := r.Resolve(c)
	require.NoError(t, err)
	assert.Equal(t, "master", res.ClientID)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestResolveNothingResolvableFails(t *testing.T) {
	r, _ := newTestResolver(t)

	c := newEchoContext(http.MethodGet, "/api/doctors", nil)

	_, err := r.Resolve(c)
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)
}

func TestResolveInvalidBearerIsNotCoerced(t *testing.T) {
	r, _ := newTestResolver(t)

	c := newEchoContext(http.MethodGet, "/api/doctors", map[string]string{
		"Authorization": "Bearer not-a-token",
	})

	_, err := r.Resolve(c)
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)
}

func TestMiddlewareInstallsTenantIntoRequestContext(t *testing.T) {
	r, jwt := newTestResolver(t)

	token, err := jwt.GenerateToken("doc@acme.test", 1, "acme", "", "admin")
	require.NoError(t, err)

	c := newEchoContext(http.MethodGet, "/api/doctors", map[string]string{
		"Authorization": "Bearer " + token,
	})

	var seen string
	var ctxLogger *zap.Logger
	next := func(c echo.Context) error {
		seen, _ = tenantctx.FromContext(c.Request().Context())
		ctxLogger = logger.FromContext(c.Request().Context())
		return nil
	}

	err = Middleware(r)(next)(c)
	require.NoError(t, err)
	assert.Equal(t, "acme", seen)
	assert.Equal(t, "acme", c.Get("client_id"))

	// The stamped request logger rides the context, not just the echo store
	assert.Same(t, c.Get("logger"), ctxLogger)
}

func TestMiddlewareRejectsUnresolvedTenant(t *testing.T) {
	r, _ := newTestResolver(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	next := func(c echo.Context) error {
		nextCalled = true
		return nil
	}

	err := Middleware(r)(next)(c)
	require.NoError(t, err)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
