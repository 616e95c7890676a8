package domain

import "strings"

const (
	// StartMarker opens the managed block. Matched as an exact, case-sensitive line; a trailing
	// "\r" from CRLF files is ignored.
	StartMarker = "#===[[ AUTO HOSTS UPDATER START"
	// EndMarker closes the managed block. Matched as an exact, case-sensitive line.
	EndMarker = "#===[[ AUTO HOSTS UPDATER END"
)

// Block locates the managed region inside a hosts document.
// Start and End are line indexes of the marker lines and are only meaningful when Found is true.
type Block struct {
	Start int
	End   int
	Found bool
}

// FindBlock returns the managed block of lines.
//
// The start and end markers are searched independently, each taking its first occurrence.
// A missing marker, or an end marker that precedes the start marker, yields a Block with
// Found == false. Malformed documents are never an error.
func FindBlock(lines []string) Block {
	start, end := -1, -1
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if start < 0 && line == StartMarker {
			start = i
		}
		if end < 0 && line == EndMarker {
			end = i
		}
		if start >= 0 && end >= 0 {
			break
		}
	}
	if start < 0 || end < 0 || end < start {
		return Block{}
	}
	return Block{Start: start, End: end, Found: true}
}

// NormalizeBlock trims surrounding whitespace from every line of text and rejoins with "\n".
// A final line terminator does not start another line.
func NormalizeBlock(text string) string {
	parts := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "\n")
}

// SplitLines splits hosts file content into lines on "\n".
// A trailing "\r" stays part of its line, so CRLF lines outside the block survive a rejoin.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// Apply computes the hosts document that results from installing desired into the managed block.
//
//   - desired non-nil and not blank: the block body is replaced by the normalized text, or a new
//     block is appended when none is present.
//   - desired nil or "": an existing block is removed, markers included. Without a block the
//     document is returned as is.
//   - desired non-empty but whitespace only: the document is returned untouched.
//
// changed reports whether the joined output differs from the joined input. The input slice is
// never modified.
func Apply(lines []string, desired *string) ([]string, bool) {
	out := apply(lines, desired)
	return out, JoinLines(out) != JoinLines(lines)
}

func apply(lines []string, desired *string) []string {
	block := FindBlock(lines)

	if desired == nil || *desired == "" {
		if !block.Found {
			return lines
		}
		return removeBlock(lines, block)
	}

	if strings.TrimSpace(*desired) == "" {
		return lines
	}

	body := NormalizeBlock(*desired)
	if !block.Found {
		out := make([]string, 0, len(lines)+3)
		out = append(out, lines...)
		return append(out, StartMarker, body, EndMarker)
	}

	out := make([]string, 0, block.Start+3+len(lines)-block.End)
	out = append(out, lines[:block.Start+1]...)
	out = append(out, body)
	return append(out, lines[block.End:]...)
}

func removeBlock(lines []string, block Block) []string {
	out := make([]string, 0, len(lines)-(block.End-block.Start+1))
	out = append(out, lines[:block.Start]...)
	return append(out, lines[block.End+1:]...)
}
