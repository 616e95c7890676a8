package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestFindBlock(t *testing.T) {
	cases := []struct {
		name  string
		lines []string
		want  Block
	}{
		{"empty document", nil, Block{}},
		{"no markers", []string{"a", "b"}, Block{}},
		{"well formed", []string{"a", StartMarker, "x", EndMarker, "b"}, Block{Start: 1, End: 3, Found: true}},
		{"adjacent markers", []string{StartMarker, EndMarker}, Block{Start: 0, End: 1, Found: true}},
		{"start only", []string{"a", StartMarker, "x"}, Block{}},
		{"end only", []string{"a", EndMarker}, Block{}},
		{"reversed", []string{EndMarker, "x", StartMarker}, Block{}},
		{"first occurrences win", []string{StartMarker, "x", EndMarker, StartMarker, "y", EndMarker}, Block{Start: 0, End: 2, Found: true}},
		{"case sensitive", []string{strings.ToLower(StartMarker), "x", strings.ToLower(EndMarker)}, Block{}},
		{"surrounding whitespace is not a marker", []string{" " + StartMarker, "x", EndMarker + " "}, Block{}},
		{"crlf line endings", SplitLines("a\r\n" + StartMarker + "\r\nx\r\n" + EndMarker + "\r\n"), Block{Start: 1, End: 3, Found: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FindBlock(tc.lines))
		})
	}
}

func TestNormalizeBlock(t *testing.T) {
	in := "\n    # comment\n    192.168.1.1 example.com\t\n\n  192.168.1.2 sub.example.com\n"
	want := "\n# comment\n192.168.1.1 example.com\n\n192.168.1.2 sub.example.com"
	assert.Equal(t, want, NormalizeBlock(in))
	assert.Equal(t, "a\n", NormalizeBlock("a\n\n"), "only one terminator is dropped")
	assert.Equal(t, "", NormalizeBlock("\n"))
}

func TestApply_Scenarios(t *testing.T) {
	cases := []struct {
		name        string
		doc         []string
		desired     *string
		want        []string
		wantChanged bool
	}{
		{
			name:        "replace existing block body",
			doc:         []string{"a", StartMarker, "old", EndMarker, "b"},
			desired:     strptr("1.1.1.1 x"),
			want:        []string{"a", StartMarker, "1.1.1.1 x", EndMarker, "b"},
			wantChanged: true,
		},
		{
			name:        "no block and nothing desired",
			doc:         []string{"a", "b"},
			desired:     nil,
			want:        []string{"a", "b"},
			wantChanged: false,
		},
		{
			name:        "clear existing block",
			doc:         []string{"a", StartMarker, "old", EndMarker, "b"},
			desired:     nil,
			want:        []string{"a", "b"},
			wantChanged: true,
		},
		{
			name:        "empty desired clears like absent",
			doc:         []string{"a", StartMarker, "old", EndMarker},
			desired:     strptr(""),
			want:        []string{"a"},
			wantChanged: true,
		},
		{
			name:        "append when no block",
			doc:         []string{"127.0.0.1 localhost", ""},
			desired:     strptr("  10.0.0.1 nas.lan  "),
			want:        []string{"127.0.0.1 localhost", "", StartMarker, "10.0.0.1 nas.lan", EndMarker},
			wantChanged: true,
		},
		{
			name:        "multi-line body collapses several old lines",
			doc:         []string{StartMarker, "1", "2", "3", EndMarker},
			desired:     strptr("a\n  b"),
			want:        []string{StartMarker, "a\nb", EndMarker},
			wantChanged: true,
		},
		{
			name:        "whitespace only leaves existing block",
			doc:         []string{"a", StartMarker, "old", EndMarker, "b"},
			desired:     strptr(" \n\t\n "),
			want:        []string{"a", StartMarker, "old", EndMarker, "b"},
			wantChanged: false,
		},
		{
			name:        "whitespace only does not append",
			doc:         []string{"a"},
			desired:     strptr("   "),
			want:        []string{"a"},
			wantChanged: false,
		},
		{
			name:        "reversed markers are treated as missing",
			doc:         []string{EndMarker, "x", StartMarker},
			desired:     strptr("1.1.1.1 x"),
			want:        []string{EndMarker, "x", StartMarker, StartMarker, "1.1.1.1 x", EndMarker},
			wantChanged: true,
		},
		{
			name:        "unpaired start marker is never cleared",
			doc:         []string{"a", StartMarker, "x"},
			desired:     nil,
			want:        []string{"a", StartMarker, "x"},
			wantChanged: false,
		},
		{
			name:        "crlf block is cleared",
			doc:         SplitLines("127.0.0.1 localhost\r\n" + StartMarker + "\r\n10.0.0.1 old.lan\r\n" + EndMarker + "\r\n"),
			desired:     nil,
			want:        []string{"127.0.0.1 localhost\r", ""},
			wantChanged: true,
		},
		{
			name:        "crlf block is replaced, not duplicated",
			doc:         SplitLines("127.0.0.1 localhost\r\n" + StartMarker + "\r\n10.0.0.1 old.lan\r\n" + EndMarker + "\r\n"),
			desired:     strptr("10.0.0.2 new.lan"),
			want:        []string{"127.0.0.1 localhost\r", StartMarker + "\r", "10.0.0.2 new.lan", EndMarker + "\r", ""},
			wantChanged: true,
		},
		{
			name:        "same body is unchanged",
			doc:         []string{"a", StartMarker, "1.1.1.1 x", EndMarker},
			desired:     strptr("1.1.1.1 x"),
			want:        []string{"a", StartMarker, "1.1.1.1 x", EndMarker},
			wantChanged: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := Apply(tc.doc, tc.desired)
			assert.Equal(t, tc.wantChanged, changed)
			assert.Equal(t, JoinLines(tc.want), JoinLines(got))
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	docs := [][]string{
		{"a", "b"},
		{"a", StartMarker, "old", EndMarker, "b"},
		{StartMarker, EndMarker},
		{""},
		SplitLines("a\r\n" + StartMarker + "\r\nold\r\n" + EndMarker + "\r\n"),
	}
	blocks := []string{"1.1.1.1 x", "\n  # lan\n  10.0.0.2 printer.lan\n", "a\nb\nc"}

	for _, doc := range docs {
		for _, b := range blocks {
			first, _ := Apply(doc, strptr(b))
			// Round-trip through text like the hosts file does between cycles.
			reread := SplitLines(JoinLines(first))
			second, changed := Apply(reread, strptr(b))
			assert.False(t, changed, "second apply of %q on %q changed document", b, doc)
			assert.Equal(t, JoinLines(first), JoinLines(second))
		}
	}
}

func TestApply_PreservesSurroundings(t *testing.T) {
	before := []string{"# header", "127.0.0.1 localhost", "", "::1 localhost"}
	after := []string{"", "# trailing", "10.1.1.1 other"}
	doc := append(append(append([]string{}, before...), StartMarker, "x", "y", EndMarker), after...)

	got, changed := Apply(doc, strptr("9.9.9.9 dns.quad9"))
	require.True(t, changed)

	block := FindBlock(got)
	require.True(t, block.Found)
	assert.Equal(t, before, got[:block.Start])
	assert.Equal(t, after, got[block.End+1:])
	assert.Equal(t, 1, countLine(got, StartMarker))
	assert.Equal(t, 1, countLine(got, EndMarker))
}

func TestApply_ClearMovesNothingElse(t *testing.T) {
	doc := []string{"a", "b", StartMarker, "x", EndMarker, "c", "d"}
	got, changed := Apply(doc, nil)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	doc := []string{"a", StartMarker, "old", EndMarker, "b"}
	snapshot := append([]string{}, doc...)

	_, _ = Apply(doc, strptr("new"))
	_, _ = Apply(doc, nil)
	assert.Equal(t, snapshot, doc)
}

func TestSplitJoinLines_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "a\n", "a\r\nb\r\n", "\n\n"} {
		assert.Equal(t, s, JoinLines(SplitLines(s)))
	}
}

func countLine(lines []string, want string) int {
	n := 0
	for _, l := range lines {
		if l == want {
			n++
		}
	}
	return n
}
