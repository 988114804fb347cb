package security

import (
	"net/http"
)

// AssetCDN is the single CDN allowed to serve the terminal emulator bundle.
const AssetCDN = "https://cdn.jsdelivr.net"

// SecurityHeaders middleware adds security headers to every response
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Referrer Policy
		w.Header().Set("Referrer-Policy", "no-referrer")

		// Never cache: pages can embed short-lived tickets
		w.Header().Set("Cache-Control", "no-store")

		// Content Security Policy: self plus the one allow-listed CDN
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' "+AssetCDN+"; "+
				"style-src 'self' 'unsafe-inline' "+AssetCDN+"; "+
				"img-src 'self' data:; "+
				"connect-src 'self' ws: wss:; "+
				"frame-ancestors 'none';")

		// Strict Transport Security
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		next.ServeHTTP(w, r)
	})
}
