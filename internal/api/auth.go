package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"bookcal/internal/config"
)

type clientKey struct{}

type auth struct {
	cfg config.AuthConfig
}

func newAuth(cfg config.AuthConfig) *auth {
	return &auth{cfg: cfg}
}

func (a *auth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get(a.cfg.Header)
		if presented == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		client, ok := a.lookup(presented)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), clientKey{}, client.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookup compares against every configured key in constant time.
func (a *auth) lookup(presented string) (config.APIKey, bool) {
	var match config.APIKey
	found := false
	for _, k := range a.cfg.Keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) == 1 {
			match = k
			found = true
		}
	}
	return match, found
}

// clientName identifies the caller for rate limiting: the API client
// name when authenticated, the remote address otherwise.
func clientName(r *http.Request) string {
	if name, ok := r.Context().Value(clientKey{}).(string); ok && name != "" {
		return name
	}
	return r.RemoteAddr
}
