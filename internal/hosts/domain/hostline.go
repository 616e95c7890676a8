package domain

import (
	"fmt"
	"net"
	"strings"
	"unicode"
)

// LineIssue describes a line of a configured block that does not look like a hosts entry.
type LineIssue struct {
	Line   int    // 1-based line number within the normalized block
	Text   string // the offending line
	Reason string
}

func (i LineIssue) String() string {
	return fmt.Sprintf("line %d: %s: %q", i.Line, i.Reason, i.Text)
}

// CheckBlock lints block text as /etc/hosts entries and returns every line that would be
// ignored or misread by a resolver. Blank lines and comments are accepted.
//
// Rules:
//   - first field must be an IPv4 or IPv6 address (a "%zone" suffix is allowed)
//   - at least one hostname must follow the address
//   - hostnames must not contain wildcards and must have labels of 1-63 characters
func CheckBlock(text string) []LineIssue {
	var issues []LineIssue
	for i, line := range strings.Split(NormalizeBlock(text), "\n") {
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}
		fields := strings.Fields(stripInlineComment(line))
		if len(fields) == 0 {
			continue
		}
		if !isHostsAddress(fields[0]) {
			issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: "invalid address"})
			continue
		}
		if len(fields) < 2 {
			issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: "no hostname"})
			continue
		}
		for _, name := range fields[1:] {
			if !isValidHostname(name) {
				issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: fmt.Sprintf("invalid hostname %q", name)})
				break
			}
		}
	}
	return issues
}

// classifyLine reports whether line is blank or a whole-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

func isHostsAddress(s string) bool {
	if idx := strings.IndexByte(s, '%'); idx > 0 {
		s = s[:idx]
	}
	return net.ParseIP(s) != nil
}

// isValidHostname accepts single-label names like "localhost" as well as FQDNs, with or
// without a trailing dot.
func isValidHostname(name string) bool {
	name = strings.TrimSuffix(name, ".")
	if name == "" || len(name) > 253 || strings.Contains(name, "*") {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !isLabelRune(r) {
				return false
			}
		}
	}
	return true
}

func isLabelRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
