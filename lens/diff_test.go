package lens

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	t.Parallel()

	diff, err := UnifiedDiff("a/x.cs", "b/x.cs", "same\n", "same\n")
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = UnifiedDiff("a/x.cs", "b/x.cs", "one\ntwo\nthree\n", "one\n2\nthree\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/x.cs")
	assert.Contains(t, diff, "+++ b/x.cs")
	assert.Contains(t, diff, "-two\n")
	assert.Contains(t, diff, "+2\n")

	diff, err = UnifiedDiff("a/new.cs", "b/new.cs", "", "class C { }\n")
	require.NoError(t, err)
	assert.Contains(t, diff, "+class C { }\n")
}

func TestUnifiedDiffTruncated(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := 0; i < 2*maxDiffLines; i++ {
		sb.WriteString("line " + strconv.Itoa(i) + "\n")
	}
	diff, err := UnifiedDiff("a", "b", "", sb.String())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(diff, "\n... diff truncated\n"))
	assert.LessOrEqual(t, strings.Count(diff, "\n"), maxDiffLines+2)
}

func TestDiffLineCounts(t *testing.T) {
	t.Parallel()

	added, removed := DiffLineCounts("a\nb\nc\n", "a\nc\nd\ne\n")
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)

	added, removed = DiffLineCounts("x\n", "x\n")
	assert.Zero(t, added)
	assert.Zero(t, removed)
}
