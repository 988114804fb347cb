package terminal

import (
	"regexp"
	"strings"
)

// Interpreter-hijacking variables are never forwarded to the child: each of
// these can make the child load attacker-chosen code before it runs.
var blockedEnv = map[string]bool{
	"LD_PRELOAD":            true,
	"LD_LIBRARY_PATH":       true,
	"LD_AUDIT":              true,
	"DYLD_INSERT_LIBRARIES": true,
	"DYLD_LIBRARY_PATH":     true,
	"GCONV_PATH":            true,
	"BASH_ENV":              true,
	"ENV":                   true,
	"PROMPT_COMMAND":        true,
	"PYTHONPATH":            true,
	"PYTHONSTARTUP":         true,
	"PERL5LIB":              true,
	"PERL5OPT":              true,
	"RUBYOPT":               true,
	"RUBYLIB":               true,
	"NODE_OPTIONS":          true,
	"IFS":                   true,
}

// Variable names that look secret-bearing are dropped too, whatever their
// value. Matching on the name keeps this cheap and value-independent.
var secretNameRegex = regexp.MustCompile(`(?i)(token|secret|key|passwd|password|credential|auth)`)

// FilterEnviron returns environ without blocked or secret-looking variables.
func FilterEnviron(environ []string) []string {
	filtered := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if blockedEnv[strings.ToUpper(name)] {
			continue
		}
		if secretNameRegex.MatchString(name) {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}
