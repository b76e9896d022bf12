package logger

import (
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"value":         {},
	"hash":          {},
	"authorization": {},
	"token":         {},
}

// Redact masks attributes whose key names credential material. It is meant
// for slog.HandlerOptions.ReplaceAttr so both output formats share it.
func Redact(groups []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
