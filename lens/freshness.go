package lens

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mtraver/base91"
	"golang.org/x/mod/semver"
)

// Version is written into every freshness marker, outputs of older versions are regenerated.
const Version = "v1.2.0"

const markerPrefix = "//entrylens:"

// MarkerState is the relation of an existing output's marker to the marker of the current input.
type MarkerState int

const (
	MarkerMissing MarkerState = iota // no output or no recognizable marker
	MarkerStale                      // input, options or tool version changed
	MarkerFresh                      // output is up to date
	MarkerNewer                      // output was written by a newer version
)

func (s MarkerState) String() string {
	switch s {
	case MarkerMissing:
		return "missing"
	case MarkerStale:
		return "stale"
	case MarkerFresh:
		return "fresh"
	case MarkerNewer:
		return "newer"
	default:
		return "unknown"
	}
}

// FreshnessMarker computes the first line of a generated file. The hash covers the original
// content and salt, which must capture everything else that changes the output (options and the
// directive path).
func FreshnessMarker(version string, content []byte, salt string) string {
	h := sha256.New()
	_, _ = h.Write(content)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, salt)
	return markerPrefix + version + ":" + base91.StdEncoding.EncodeToString(h.Sum(nil))
}

// ParseFreshnessMarker splits a marker line into its version and hash.
func ParseFreshnessMarker(line string) (version, hash string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimRight(line, "\r\n"), markerPrefix)
	if !found {
		return "", "", false
	}
	version, hash, found = strings.Cut(rest, ":")
	if !found || hash == "" || !semver.IsValid(version) {
		return "", "", false
	}
	return version, hash, true
}

// CompareMarker classifies the first line of an existing output against the current marker.
func CompareMarker(existingFirstLine, marker string) MarkerState {
	existingVersion, existingHash, ok := ParseFreshnessMarker(existingFirstLine)
	if !ok {
		return MarkerMissing
	}
	version, hash, ok := ParseFreshnessMarker(marker)
	if !ok {
		return MarkerStale
	}
	switch semver.Compare(existingVersion, version) {
	case 1:
		return MarkerNewer
	case -1:
		return MarkerStale
	}
	if existingHash != hash {
		return MarkerStale
	}
	return MarkerFresh
}

// readFirstLine returns the first line of a file without its line break, an empty string if the
// file does not exist.
func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 256)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read marker of %s: %w", path, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
