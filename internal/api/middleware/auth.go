package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/labelrag/internal/api"
	"github.com/cloo-solutions/labelrag/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// ClientIDHeader carries the authenticated client id to outer middleware.
const ClientIDHeader = "X-Client-ID"

// AuthValidator resolves a bearer token to a client id.
type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKey accepts a single configured API key.
type StaticKey struct {
	key string
}

func NewStaticKey(key string) *StaticKey {
	return &StaticKey{key: key}
}

// ValidateAPIKey returns a short fingerprint of the key as the client id, so
// logs never carry the key itself.
func (s *StaticKey) ValidateAPIKey(_ context.Context, token string) (string, error) {
	if s.key == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.key)) != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	sum := sha256.Sum256([]byte(token))
	return "key_" + hex.EncodeToString(sum[:4]), nil
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(ClientIDHeader)
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(ClientIDHeader, clientID)
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
