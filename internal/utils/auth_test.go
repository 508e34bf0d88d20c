package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/support-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testUser = models.Identity{
	Subject:       "user-1",
	Role:          models.RoleUser,
	Method:        models.AuthMethodEmail,
	Name:          "Dana",
	Email:         "dana@example.com",
	EmailVerified: true,
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	token, err := v.GenerateToken(testUser, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testUser, got)
}

func TestJWTVerifierRejects(t *testing.T) {
	issuer := NewJWTVerifier("secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := issuer.GenerateToken(testUser, time.Hour)
		require.NoError(t, err)
		_, err = NewJWTVerifier("other").Verify(context.Background(), token)
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := issuer.GenerateToken(testUser, -time.Minute)
		require.NoError(t, err)
		_, err = issuer.Verify(context.Background(), token)
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})

	t.Run("no subject", func(t *testing.T) {
		token, err := issuer.GenerateToken(models.Identity{Role: models.RoleUser}, time.Hour)
		require.NoError(t, err)
		_, err = issuer.Verify(context.Background(), token)
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
	})
}

func TestClaimsIdentityDefaults(t *testing.T) {
	id := IdentityClaims{UserID: "u", Phone: "+7700"}.Identity()
	assert.Equal(t, models.RoleUser, id.Role)
	assert.Equal(t, models.AuthMethodPhone, id.Method)

	id = IdentityClaims{UserID: "u", AuthMethod: "google", Email: "a@b.c"}.Identity()
	assert.Equal(t, models.AuthMethodGoogle, id.Method)

	id = IdentityClaims{UserID: "u", AuthMethod: "carrier-pigeon"}.Identity()
	assert.Equal(t, models.AuthMethodEmail, id.Method)
}

func newAuthRouter(verifier IdentityVerifier, required bool, roles ...models.Role) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(verifier, required, zap.NewNop())}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"subject": identity.Subject, "authenticated": ok})
	})
	r.GET("/", handlers...)
	return r
}

func doGet(r http.Handler, authorization string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthMiddleware(t *testing.T) {
	v := NewJWTVerifier("secret")
	userToken, err := v.GenerateToken(testUser, time.Hour)
	require.NoError(t, err)
	adminToken, err := v.GenerateToken(models.Identity{Subject: "admin-1", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	t.Run("required without header", func(t *testing.T) {
		w, body := doGet(newAuthRouter(v, true), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, body["success"])
		assert.EqualValues(t, http.StatusUnauthorized, body["statusCode"])
	})

	t.Run("malformed header", func(t *testing.T) {
		w, _ := doGet(newAuthRouter(v, true), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w, body := doGet(newAuthRouter(v, true), "Bearer "+userToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", body["subject"])
	})

	t.Run("optional passes anonymous", func(t *testing.T) {
		w, body := doGet(newAuthRouter(v, false), "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["authenticated"])
	})

	t.Run("optional still rejects bad token", func(t *testing.T) {
		w, _ := doGet(newAuthRouter(v, false), "Bearer broken")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("role denied", func(t *testing.T) {
		w, _ := doGet(newAuthRouter(v, true, models.RoleAdmin), "Bearer "+userToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("role allowed", func(t *testing.T) {
		w, _ := doGet(newAuthRouter(v, true, models.RoleAdmin, models.RoleManager), "Bearer "+adminToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthServiceVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/validate", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_ = json.NewEncoder(w).Encode(AuthResponse{UserID: "user-9", Phone: "+77001234567", PhoneVerified: true})
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewAuthServiceVerifier(srv.URL)

	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-9", id.Subject)
	assert.Equal(t, models.RoleUser, id.Role)
	assert.Equal(t, models.AuthMethodPhone, id.Method)
	assert.True(t, id.Verified())

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)

	_, err = v.Verify(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrAuthenticationRequired)
}
