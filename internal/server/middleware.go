package server

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"termshare/internal/constants"
	"termshare/internal/security"
)

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("🔥 PANIC RECOVERED: %v\nStack Trace:\n%s", err, string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the presented credential from the Authorization
// header or, for clients that cannot set headers, the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	return r.URL.Query().Get("token")
}

// authorize gates an API handler: rate limit first (so auth probing is also
// budgeted), then session expiry, then the bearer credential.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, class security.LimiterClass) bool {
	addr := security.GetClientIP(r)

	if !s.cfg.Limiter.Allow(addr, class) {
		if s.cfg.Audit != nil {
			className := "general"
			if class == security.ClassTicket {
				className = "ticket"
			}
			s.cfg.Audit.LogRateLimit(addr, className)
		}
		http.Error(w, constants.MsgRateLimitExceeded, http.StatusTooManyRequests)
		return false
	}

	if s.cfg.Manager != nil && s.cfg.Manager.Expired() {
		http.Error(w, constants.MsgSessionExpired, http.StatusUnauthorized)
		return false
	}

	token := bearerToken(r)
	if token == "" || !s.cfg.Token.Verify(token) {
		if s.cfg.Audit != nil {
			s.cfg.Audit.LogAuthFailure(addr, "bad bearer credential")
		}
		http.Error(w, constants.MsgUnauthorized, http.StatusUnauthorized)
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
