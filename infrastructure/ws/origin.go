package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker accepts the configured origins, compared as lower-cased scheme://host.
// "*" allows every origin. Requests without an Origin header do not come from a
// browser and are accepted.
type OriginChecker struct {
	log      *slog.Logger
	allowed  map[string]struct{}
	allowAll bool
}

func NewOriginChecker(log *slog.Logger, origins []string) *OriginChecker {
	checker := &OriginChecker{log: log, allowed: make(map[string]struct{})}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			checker.allowAll = true
		default:
			normalized, ok := normalizeOrigin(trimmed)
			if !ok {
				log.Warn("Ignoring invalid origin in configuration", "origin", origin)
				continue
			}
			checker.allowed[normalized] = struct{}{}
		}
	}
	return checker
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (c *OriginChecker) Check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || c.allowAll {
		return true
	}
	if normalized, ok := normalizeOrigin(header); ok {
		if _, exists := c.allowed[normalized]; exists {
			return true
		}
	}
	c.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", header)
	return false
}
