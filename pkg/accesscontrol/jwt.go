package accesscontrol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/registryx/registryx/pkg/logging"
)

// Subject is what a validated bearer token resolves to: who is making the
// request and what role they carry, matching the claims the donor's
// AuthMiddleware already injects into its request context.
type Subject struct {
	Name string
	Role string
}

// JWTAuthenticator validates bearer tokens, adapted from the donor's
// middleware.AuthMiddleware: same HMAC-secret validation, same Redis
// session-liveness check keyed by the token's jti claim.
type JWTAuthenticator struct {
	Secret string
	Redis  *redis.Client
}

// Authenticate parses authHeader ("Bearer <token>") and returns the
// resolved Subject, or ok=false if the header is missing/malformed or the
// token fails validation or its session has been revoked.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, authHeader string) (Subject, bool) {
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return Subject{}, false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.Secret), nil
	})
	if err != nil || !token.Valid {
		logging.Log.WithError(err).Debug("bearer token rejected")
		return Subject{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Subject{}, false
	}

	if a.Redis != nil {
		if sid, _ := claims["jti"].(string); sid != "" {
			exists, err := a.Redis.Exists(ctx, "session:"+sid).Result()
			if err != nil || exists == 0 {
				logging.WithFields(map[string]any{"session_id": sid}).Debug("session expired or revoked")
				return Subject{}, false
			}
			a.Redis.Expire(ctx, "session:"+sid, 24*time.Hour)
		}
	}

	name, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	return Subject{Name: name, Role: role}, true
}

// Challenge builds the Www-Authenticate header value for a 401 response.
func (a *JWTAuthenticator) Challenge(realm, service string) string {
	return fmt.Sprintf(`Bearer realm="%s",service="%s"`, realm, service)
}
