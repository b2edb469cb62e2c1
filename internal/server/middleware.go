package server

import (
	"net/http"
	"time"

	"github.com/debemdeboas/quill/internal/config"
	"github.com/google/uuid"
)

const CookieSession = "quill_session"

func cacheIt(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")
		h.ServeHTTP(w, r)
	}
}

func secureHeaders(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		h.ServeHTTP(w, r)
	}
}

// withWorkspace binds the request to the caller's workspace, issuing a client
// cookie on first contact.
func (s *Server) withWorkspace(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := ""
		if c, err := r.Cookie(config.CookieClient); err == nil && c.Value != "" {
			clientID = c.Value
		} else {
			clientID = uuid.NewString()
			http.SetCookie(w, s.cookie(config.CookieClient, clientID, 0))
		}

		token := ""
		if c, err := r.Cookie(CookieSession); err == nil {
			token = c.Value
		}

		ws, err := s.Registry.Get(r.Context(), clientID, token)
		if err != nil {
			serverLogger.Error().Err(err).Str("client_id", clientID).Msg("Error preparing workspace")
			writeError(w, nil, err)
			return
		}

		h(w, r.WithContext(ContextWithWorkspace(r.Context(), ws)))
	}
}

func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}
