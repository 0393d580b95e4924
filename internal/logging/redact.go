package logging

import (
	"log/slog"
	"regexp"
)

// redaction rewrites one kind of secret that users paste into the palette
// filter by accident.
type redaction struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// Order matters: specific token formats run before the generic key=value
// rule so their labels survive.
var redactions = []redaction{
	{
		name:        "aws access key",
		re:          regexp.MustCompile(`\b(AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}\b`),
		replacement: "[AWS_KEY]",
	},
	{
		name:        "github token",
		re:          regexp.MustCompile(`\b(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,}\b`),
		replacement: "[GITHUB_TOKEN]",
	},
	{
		name:        "slack token",
		re:          regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
		replacement: "[SLACK_TOKEN]",
	},
	{
		name:        "jwt",
		re:          regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		replacement: "[JWT]",
	},
	{
		name:        "bearer",
		re:          regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{20,}`),
		replacement: "Bearer [TOKEN]",
	},
	{
		name:        "url credentials",
		re:          regexp.MustCompile(`(://[^/\s:@]+):[^/\s@]+@`),
		replacement: "$1:[PASSWORD]@",
	},
	{
		name:        "key value",
		re:          regexp.MustCompile(`(?i)\b((?:password|passwd|pwd|secret|token|api[_-]?key)\s*[=:]\s*)\S+`),
		replacement: "${1}[REDACTED]",
	},
}

// Redact masks credentials in s. It is idempotent.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.replacement)
	}
	return s
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); v != "" {
			a.Value = slog.StringValue(Redact(v))
		}
	}
	return a
}
