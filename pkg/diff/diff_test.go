package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinesIdenticalContent(t *testing.T) {
	t.Parallel()
	require.Empty(t, Lines("one\ntwo", "one\ntwo"))
}

func TestLinesSingleLineChange(t *testing.T) {
	t.Parallel()

	got := Lines("one\ntwo\nthree", "one\n2\nthree")
	require.Equal(t, " one\n-two\n+2\n three", got)
}

func TestLinesAddedAndRemovedLines(t *testing.T) {
	t.Parallel()

	require.Equal(t, " one\n+two", Lines("one\n", "one\ntwo"))
	require.Equal(t, "-only", Lines("only", ""))
}

func TestLinesTruncatesLargeDiffs(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < maxDiffLines+50; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}

	got := strings.Split(Lines("", b.String()), "\n")
	require.Len(t, got, maxDiffLines+1)
	require.Equal(t, truncateMessage, got[len(got)-1])
	require.Equal(t, "+line 0", got[0])
}
