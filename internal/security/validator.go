package security

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var recordIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateRecordID checks if string is a valid session record id (UUID)
func ValidateRecordID(id string) bool {
	if id == "" {
		return false
	}
	return recordIDRegex.MatchString(strings.ToLower(id))
}

// ValidatePort checks if port is valid
func ValidatePort(port int) bool {
	return port > 0 && port <= 65535
}

// ValidateOrigin checks the Origin header against the allow list. An absent
// Origin means a non-browser client (same machine, curl, the hub); those are
// admitted and fall through to ticket auth.
func ValidateOrigin(r *http.Request, allowedHosts []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" {
		return true
	}

	for _, allowed := range allowedHosts {
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	return false
}

// ValidatePath checks for path traversal attempts
func ValidatePath(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	if strings.Contains(path, "\x00") {
		return false
	}
	return true
}
