// Package sandbox gatekeeps caller-supplied SQL before it reaches the
// warehouse. It is a pure check over the statement text: a read-only prefix
// allow, a mutating-keyword blocklist, and rejection of the comment and
// chaining forms that hide keywords from substring matching. Registry-defined
// report queries never pass through here.
package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxQueryLength = 10_000

var blockedKeywords = []string{
	"create",
	"alter",
	"drop",
	"insert",
	"update",
	"delete",
	"truncate",
	"grant",
	"revoke",
}

var keywordPatterns = compileKeywordPatterns()

func compileKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(blockedKeywords))
	for _, keyword := range blockedKeywords {
		patterns[keyword] = regexp.MustCompile(`(?i)\b` + keyword + `\b`)
	}
	return patterns
}

// Validate returns nil when sqlText is acceptable for execution, or an error
// naming the first reason it was rejected.
func Validate(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return fmt.Errorf("query text is empty")
	}
	if len(sqlText) > MaxQueryLength {
		return fmt.Errorf("query text exceeds %d characters", MaxQueryLength)
	}

	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return fmt.Errorf("only SELECT and WITH statements are allowed")
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return fmt.Errorf("SQL comments are not allowed")
	}
	if chained(trimmed) {
		return fmt.Errorf("statement chaining is not allowed")
	}

	for _, keyword := range blockedKeywords {
		if keywordPatterns[keyword].MatchString(trimmed) {
			return fmt.Errorf("statement contains blocked keyword %q", strings.ToUpper(keyword))
		}
	}
	return nil
}

// chained reports whether a semicolon is followed by more statement text.
// A single trailing semicolon is tolerated.
func chained(sqlText string) bool {
	index := strings.Index(sqlText, ";")
	if index < 0 {
		return false
	}
	return strings.TrimSpace(sqlText[index+1:]) != ""
}
