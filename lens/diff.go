package lens

import (
	"github.com/pmezard/go-difflib/difflib"
)

const maxDiffLines = 400

// UnifiedDiff renders the change from before to after, an empty string if they are equal. Very
// long diffs are cut after maxDiffLines.
func UnifiedDiff(fromFile, toFile, before, after string) (string, error) {
	if before == after {
		return "", nil
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  2,
	})
	if err != nil {
		return "", err
	}
	if limited := limitStringLines(text, maxDiffLines, true); len(limited) < len(text) {
		text = limited + "\n... diff truncated\n"
	}
	return text, nil
}

// DiffLineCounts returns the number of lines added and removed between before and after.
func DiffLineCounts(before, after string) (added, removed int) {
	matcher := difflib.NewMatcher(difflib.SplitLines(before), difflib.SplitLines(after))
	for _, code := range matcher.GetOpCodes() {
		switch code.Tag {
		case 'i':
			added += code.J2 - code.J1
		case 'd':
			removed += code.I2 - code.I1
		case 'r':
			added += code.J2 - code.J1
			removed += code.I2 - code.I1
		}
	}
	return added, removed
}
