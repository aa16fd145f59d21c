package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type ctxKey string

const (
	sessionKey ctxKey = "session"
	callerKey  ctxKey = "caller"
)

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func UserIDFromContext(ctx context.Context) (uint64, bool) {
	s, ok := SessionFromContext(ctx)
	return s.UserID, ok
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}

// SecretMatches compares a presented token with the shared secret in
// constant time. An empty secret never matches.
func SecretMatches(token, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

func RequireAuth(jwtSvc *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			s, err := jwtSvc.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// Caller identifies who invoked a batch endpoint.
type Caller struct {
	// Cron is true when the shared secret was presented.
	Cron    bool
	Session Session
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

var ErrCronSecretMissing = errors.New("cron secret not configured")

// RequireCronOrSession accepts either the shared cron secret or a valid user
// session. With an empty secret, a token that is not a valid session fails
// with a configuration error instead of 401.
func RequireCronOrSession(jwtSvc *JWT, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if SecretMatches(token, secret) {
				ctx := context.WithValue(r.Context(), callerKey, Caller{Cron: true})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			s, err := jwtSvc.Verify(token)
			if err != nil {
				if secret == "" {
					writeError(w, http.StatusInternalServerError, ErrCronSecretMissing.Error())
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := WithSession(r.Context(), s)
			ctx = context.WithValue(ctx, callerKey, Caller{Session: s})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCronOrAdmin is RequireCronOrSession restricted to admin sessions.
func RequireCronOrAdmin(jwtSvc *JWT, secret string) func(http.Handler) http.Handler {
	inner := RequireCronOrSession(jwtSvc, secret)
	return func(next http.Handler) http.Handler {
		return inner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := CallerFromContext(r.Context())
			if !c.Cron && !c.Session.IsAdmin() {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
