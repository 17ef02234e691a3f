package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"jan-server/services/media-ingest/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHeaderPrincipal(t *testing.T) {
	v := &Validator{cfg: &config.Config{AuthEnabled: false}}
	router := gin.New()
	router.Use(v.Middleware())

	var got Principal
	var found bool
	router.GET("/", func(c *gin.Context) {
		got, found = PrincipalFrom(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserRoles, "member, Admin")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, found)
	assert.Equal(t, "user-1", got.ID)
	assert.True(t, got.HasRole("admin"))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, found)
}

func TestPrincipalFromClaims(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":          "abc",
		"realm_access": map[string]any{"roles": []any{"offline_access", "admin"}},
		"roles":        []any{"editor", 7},
	}
	principal := principalFromClaims(claims)
	assert.Equal(t, "abc", principal.ID)
	assert.Equal(t, []string{"offline_access", "admin", "editor"}, principal.Roles)
}

func TestHasAudience(t *testing.T) {
	assert.True(t, hasAudience(jwt.MapClaims{"aud": "account"}, "account"))
	assert.True(t, hasAudience(jwt.MapClaims{"aud": []any{"x", "account"}}, "account"))
	assert.True(t, hasAudience(jwt.MapClaims{}, "account"))
	assert.False(t, hasAudience(jwt.MapClaims{"aud": "other"}, "account"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "tok", bearerToken("Bearer tok"))
	assert.Equal(t, "tok", bearerToken("bearer  tok"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}
