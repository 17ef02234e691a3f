package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
)

const (
	principalKey = "auth_principal"

	HeaderUserID    = "X-User-ID"
	HeaderUserRoles = "X-User-Roles"
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Validator validates JWTs using JWKS. With auth disabled it trusts the
// gateway headers instead.
type Validator struct {
	cfg  *config.Config
	log  zerolog.Logger
	jwks *keyfunc.JWKS
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	if !cfg.AuthEnabled {
		return &Validator{cfg: cfg, log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{
		cfg:  cfg,
		log:  log,
		jwks: jwks,
	}, nil
}

// Middleware attaches the caller's Principal to the request when one can be established.
func (v *Validator) Middleware() gin.HandlerFunc {
	if v == nil || !v.cfg.AuthEnabled {
		return headerPrincipal
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
			jwt.WithIssuer(v.cfg.AuthIssuer),
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		)
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}

		if audience := strings.TrimSpace(v.cfg.Account); audience != "" && !hasAudience(claims, audience) {
			abortUnauthorized(c, "invalid token audience")
			return
		}

		principal := principalFromClaims(claims)
		if principal.ID == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		c.Set("auth_token", token)
		c.Set(principalKey, principal)
		c.Next()
	}
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if v == nil || !v.cfg.AuthEnabled {
		return true
	}
	return v.jwks != nil
}

// PrincipalFrom returns the principal attached by Middleware.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok && principal.ID != ""
}

func headerPrincipal(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if id != "" {
		c.Set(principalKey, Principal{ID: id, Roles: splitRoles(c.GetHeader(HeaderUserRoles))})
	}
	c.Next()
}

func principalFromClaims(claims jwt.MapClaims) Principal {
	subject, _ := claims.GetSubject()
	var roles []string
	if realm, ok := claims["realm_access"].(map[string]any); ok {
		roles = append(roles, stringList(realm["roles"])...)
	}
	roles = append(roles, stringList(claims["roles"])...)
	return Principal{ID: subject, Roles: roles}
}

func hasAudience(claims jwt.MapClaims, audience string) bool {
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	if len(aud) == 0 {
		return true
	}
	for _, entry := range aud {
		if entry == audience {
			return true
		}
	}
	return false
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitRoles(raw string) []string {
	var roles []string
	for _, role := range strings.Split(raw, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
