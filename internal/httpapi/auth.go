package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimsContextKey = "wallet_claims"
	bearerPrefix     = "Bearer "
	roleOperator     = "operator"
)

var errInvalidToken = errors.New("invalid token")

// Claims identify the caller. The subject is the wallet owner's user id.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (claims *Claims) UserID() string {
	return claims.Subject
}

// HasRole reports whether the token carries role.
func (claims *Claims) HasRole(role string) bool {
	return slices.Contains(claims.Roles, role)
}

// Authenticator validates HMAC-signed bearer tokens.
type Authenticator struct {
	signingKey []byte
	parser     *jwt.Parser
}

func NewAuthenticator(signingKey []byte, issuer string) *Authenticator {
	return &Authenticator{
		signingKey: signingKey,
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Parse validates raw and returns its claims. Tokens without a subject or tenant are rejected.
func (authenticator *Authenticator) Parse(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := authenticator.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return authenticator.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.TenantID) == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the claims on the context.
func (authenticator *Authenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims, err := authenticator.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", err.Error()))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

// RequireRole rejects callers whose token lacks role.
func RequireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil || !claims.HasRole(role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "operator role required"))
			return
		}
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*Claims)
	return claims
}
