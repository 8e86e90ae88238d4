package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultRedactKeys are attribute keys that never reach the log output in
// clear text.
var DefaultRedactKeys = []string{"api_key", "authorization", "password", "secret", "token"}

const redacted = "***"

var bearerToken = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

// redactor hides secret attribute values. Keys match case-insensitively;
// string values of other keys have bearer tokens masked.
type redactor struct {
	keys map[string]struct{}
}

func newRedactor(extra []string) *redactor {
	r := &redactor{keys: make(map[string]struct{}, len(DefaultRedactKeys)+len(extra))}
	for _, k := range DefaultRedactKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	return r
}

func (r *redactor) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := r.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.Contains(s, "Bearer") {
			return slog.String(a.Key, bearerToken.ReplaceAllString(s, "Bearer "+redacted))
		}
	}
	return a
}
