package lens

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/go-analyze/bulk"
)

// NewlineAuto selects the line break style of each input instead of a fixed one.
const NewlineAuto = "auto"

// DefaultKinds lists the declaration types instrumented when Options.Kinds is empty.
var DefaultKinds = []string{"method_declaration"}

// InstrumentableKinds lists every declaration type that can be selected with Options.Kinds.
var InstrumentableKinds = []string{
	"method_declaration",
	"constructor_declaration",
	"destructor_declaration",
	"local_function_statement",
}

// Options configures a Rewriter, zero values select the defaults.
type Options struct {
	Callee  string   // method invoked on entry, DefaultCallee if empty
	Kinds   []string // grammar types to instrument, DefaultKinds if empty
	Newline string   // line break written around directives: "\n" (default), "\r\n" or NewlineAuto
}

// Rewriter instruments C# compilation units. It holds no mutable state and may be used from
// multiple goroutines.
type Rewriter struct {
	callee  string
	kinds   map[string]bool
	newline string
}

// NewRewriter validates the options and returns a Rewriter for them.
func NewRewriter(opts Options) (*Rewriter, error) {
	callee := opts.Callee
	if callee == "" {
		callee = DefaultCallee
	} else if err := validateCallee(callee); err != nil {
		return nil, err
	}

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	allowed := bulk.SliceToSet(InstrumentableKinds)
	for _, k := range kinds {
		if _, ok := allowed[k]; !ok {
			return nil, fmt.Errorf("declaration kind %q can not be instrumented, expected one of %s",
				k, strings.Join(InstrumentableKinds, ", "))
		}
	}

	switch opts.Newline {
	case "":
		opts.Newline = "\n"
	case "\n", "\r\n", NewlineAuto:
	default:
		return nil, fmt.Errorf("unsupported newline %q", opts.Newline)
	}

	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	return &Rewriter{callee: callee, kinds: kindSet, newline: opts.Newline}, nil
}

// Fingerprint identifies the options affecting the output, it salts freshness markers.
func (r *Rewriter) Fingerprint() string {
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return r.callee + "|" + strings.Join(kinds, ",") + "|" + strconv.Quote(r.newline)
}

var defaultRewriter = &Rewriter{
	callee:  DefaultCallee,
	kinds:   map[string]bool{"method_declaration": true},
	newline: "\n",
}

// Rewrite instruments original with the default options. relativePathToOriginal is written into
// the #line directives, freshnessMarker is emitted verbatim as the first line.
func Rewrite(original, relativePathToOriginal, freshnessMarker string) (string, error) {
	return defaultRewriter.Rewrite(original, relativePathToOriginal, freshnessMarker)
}

// Rewrite instruments original, see the package level Rewrite.
func (r *Rewriter) Rewrite(original, relativePathToOriginal, freshnessMarker string) (string, error) {
	result, _, err := r.RewriteWithStats(original, relativePathToOriginal, freshnessMarker)
	return result, err
}

// RewriteWithStats instruments original and reports what was changed.
func (r *Rewriter) RewriteWithStats(original, relativePathToOriginal, freshnessMarker string) (string, Stats, error) {
	if err := validateDirectivePath(relativePathToOriginal); err != nil {
		return "", Stats{}, err
	} else if strings.ContainsAny(freshnessMarker, "\r\n") {
		return "", Stats{}, errors.New("freshness marker must be a single line")
	}

	tree, err := Parse(original)
	if err != nil {
		return "", Stats{}, err
	}
	nl := r.newline
	if nl == NewlineAuto {
		nl = detectNewline(original)
	}
	t := &transformer{
		unit:   tree.Unit,
		path:   relativePathToOriginal,
		callee: r.callee,
		kinds:  r.kinds,
		nl:     nl,
	}
	root, err := t.transform(tree.Root)
	if err != nil {
		return "", Stats{}, err
	}

	var sb strings.Builder
	sb.Grow(len(original) + len(freshnessMarker) + t.stats.Methods*(len(r.callee)+2*len(relativePathToOriginal)+64))
	sb.WriteString(freshnessMarker)
	sb.WriteString(nl)
	sb.WriteString(ResumeDirective(1, relativePathToOriginal).String())
	sb.WriteString(nl)
	root.writeFull(&sb)
	return sb.String(), t.stats, nil
}

// RewriteStream reads the whole of src and writes the rewritten text to dst. Nothing is written
// unless the rewrite succeeded.
func (r *Rewriter) RewriteStream(relativePathToOriginal, freshnessMarker string, src io.Reader, dst io.Writer) error {
	original, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	result, err := r.Rewrite(string(original), relativePathToOriginal, freshnessMarker)
	if err != nil {
		return err
	}
	if _, err = io.WriteString(dst, result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
