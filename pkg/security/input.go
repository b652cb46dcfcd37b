// Package security screens free-text input (cancellation reasons, review
// comments, special requests) against a blocklist before it is stored.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxInputLength is the hard cap applied regardless of the caller's limit.
const MaxInputLength = 10000

type rule struct {
	name    string
	pattern *regexp.Regexp
}

var blocklist = []rule{
	{"script tag", regexp.MustCompile(`(?is)<script\b.*?</script>`)},
	{"javascript url", regexp.MustCompile(`(?i)javascript:`)},
	{"event handler", regexp.MustCompile(`(?i)\bon\w+\s*=`)},
	{"code execution", regexp.MustCompile(`(?i)<\?php|\b(eval|exec|system|shell_exec|passthru|file_get_contents|file_put_contents|fopen|fwrite|include|require)\s*\(`)},
	{"path traversal", regexp.MustCompile(`\.\./|\.\.\\`)},
	{"sql keyword", regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|SCRIPT)\b`)},
	{"shell metacharacter", regexp.MustCompile("[;&|`$(){}]")},
	{"control character", regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)},
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// Violation describes why a value was rejected.
type Violation struct {
	Rule string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("input rejected: %s", v.Rule)
}

// CheckInput returns a *Violation when value trips the blocklist or exceeds
// maxLen characters (or MaxInputLength when maxLen is zero or larger).
func CheckInput(value string, maxLen int) error {
	if maxLen <= 0 || maxLen > MaxInputLength {
		maxLen = MaxInputLength
	}
	if utf8.RuneCountInString(value) > maxLen {
		return &Violation{Rule: fmt.Sprintf("longer than %d characters", maxLen)}
	}
	for _, r := range blocklist {
		if r.pattern.MatchString(value) {
			return &Violation{Rule: r.name}
		}
	}
	return nil
}

// Sanitize trims value, strips markup and then applies CheckInput.
func Sanitize(value string, maxLen int) (string, error) {
	cleaned := strings.TrimSpace(tagRe.ReplaceAllString(value, ""))
	if err := CheckInput(value, maxLen); err != nil {
		return "", err
	}
	return cleaned, nil
}
