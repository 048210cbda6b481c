// Package redact strips credentials, tokens, addresses, SQL and file paths
// from strings before they reach logs. Client responses never carry raw
// error text, so this only guards the log stream.
package redact

import (
	"regexp"
)

const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	JWTPlaceholder        = "[REDACTED_JWT]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	PathPlaceholder       = "[REDACTED_PATH]"
	StackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules see the unmodified input.
var rules = []rule{
	{
		pattern:     regexp.MustCompile(`goroutine \d+ \[[^\]]*\]:[\s\S]*`),
		replacement: StackPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		replacement: JWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb(?:\+srv)?)://[^@\s/]+@`),
		replacement: "${1}://" + CredentialPlaceholder + "@",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret)(\s*[=:]\s*)\S+`),
		replacement: "${1}${2}" + CredentialPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		replacement: EmailPlaceholder,
	},
	{
		pattern: regexp.MustCompile(
			`(?i)\b(?:select\s.+?\sfrom|insert\s+into|update\s+\w+\s+set|delete\s+from)\b[^;\n]*`,
		),
		replacement: SQLPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?:/[\w.-]+){2,}`),
		replacement: PathPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
