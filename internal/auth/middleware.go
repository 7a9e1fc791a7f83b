// Package auth carries the user's credential token from the browser into the
// session store. The gateway never verifies signatures; the reservation backend
// does that on every call the token is forwarded to.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"parkflow/internal/entities"
	"parkflow/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// CookieName is read when the request has no Authorization header.
const CookieName = "parkflow_token"

// BearerToken returns the token of the request, or "".
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// CredentialMiddleware stores the request's token under the wizard session named
// by the sessionID route variable. Requests without a token pass through
// untouched, so a token stored earlier keeps working.
func CredentialMiddleware(store session.Store, now func() time.Time, logger *slog.Logger) mux.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := mux.Vars(r)["sessionID"]
			token := BearerToken(r)
			if sessionID != "" && token != "" && !Expired(token, now()) {
				if err := store.Set(r.Context(), sessionID, session.KeyCredentialToken, token); err != nil {
					logger.Error("storing credential token", "session", sessionID, "err", err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HasCredential reports whether the session holds a usable token. An expired
// token is removed and counts as absent.
func HasCredential(ctx context.Context, store session.Store, sessionID string, now time.Time) (bool, error) {
	token, ok, err := store.Get(ctx, sessionID, session.KeyCredentialToken)
	if err != nil || !ok {
		return false, err
	}
	if Expired(token, now) {
		return false, store.Clear(ctx, sessionID, session.KeyCredentialToken)
	}
	return true, nil
}

// Expired is true for a JWT whose exp lies before now. Opaque tokens never expire here.
func Expired(token string, now time.Time) bool {
	claims, ok := parseClaims(token)
	if !ok {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

// ContactFromToken reads the voucher recipient from the token claims.
func ContactFromToken(token string) (entities.Contact, bool) {
	claims, ok := parseClaims(token)
	if !ok {
		return entities.Contact{}, false
	}
	c := entities.Contact{
		Name:  claimString(claims, "name", "fullName", "username"),
		Email: claimString(claims, "email"),
		Phone: claimString(claims, "phone", "phoneNumber", "phone_number"),
	}
	return c, !c.Empty()
}

func parseClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func claimString(claims jwt.MapClaims, names ...string) string {
	for _, n := range names {
		if v, ok := claims[n].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
