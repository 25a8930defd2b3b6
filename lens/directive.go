package lens

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultCallee is the method invoked by the injected entry statement.
const DefaultCallee = "System.Console.WriteLine"

// EntryMessagePrefix prefixes the declaration name in the injected message.
const EntryMessagePrefix = "Entering "

var errInvalidCallee = errors.New("callee must be a dotted C# identifier path")

var identifierRe = regexp.MustCompile(`^@?[\p{L}_][\p{L}\p{Nd}\p{Mn}\p{Mc}\p{Pc}_]*$`)

// LineDirective is a #line annotation, either resuming the mapping at Line of File or hiding the
// following lines from line mapping.
type LineDirective struct {
	Hidden bool
	Line   int
	File   string
}

// HiddenDirective marks following lines as synthetic.
func HiddenDirective() LineDirective {
	return LineDirective{Hidden: true}
}

// ResumeDirective maps the following line to line of file.
func ResumeDirective(line int, file string) LineDirective {
	return LineDirective{Line: line, File: file}
}

func (d LineDirective) String() string {
	if d.Hidden {
		return "#line hidden"
	}
	return "#line " + strconv.Itoa(d.Line) + ` "` + d.File + `"`
}

// validateDirectivePath checks that the file name needs no escaping, directive file names are
// taken literally up to the closing quote.
func validateDirectivePath(path string) error {
	if path == "" || strings.ContainsAny(path, "\"\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidDirectivePath, path)
	}
	return nil
}

// Call is the template of an injected invocation statement with string literal arguments.
type Call struct {
	Callee string
	Args   []string
}

// EntryCall builds the entry statement template for a declaration name.
func EntryCall(callee, name string) Call {
	return Call{Callee: callee, Args: []string{EntryMessagePrefix + name}}
}

func validateCallee(callee string) error {
	for _, part := range strings.Split(callee, ".") {
		if !identifierRe.MatchString(part) {
			return fmt.Errorf("%w: %q", errInvalidCallee, callee)
		}
	}
	return nil
}

// Statement formats the call into a synthetic expression statement.
func (c Call) Statement() *Node {
	invocation := &Node{Kind: KindExpression, Type: "invocation_expression", Span: syntheticSpan}
	for i, part := range strings.Split(c.Callee, ".") {
		if i > 0 {
			invocation.Children = append(invocation.Children, syntheticToken(".", "."))
		}
		invocation.Children = append(invocation.Children, syntheticToken("identifier", part))
	}
	args := &Node{Kind: KindSyntax, Type: "argument_list", Span: syntheticSpan}
	args.Children = append(args.Children, syntheticToken("(", "("))
	for i, arg := range c.Args {
		if i > 0 {
			comma := syntheticToken(",", ",")
			comma.Trailing = " "
			args.Children = append(args.Children, comma)
		}
		args.Children = append(args.Children, syntheticToken("string_literal", quoteString(arg)))
	}
	args.Children = append(args.Children, syntheticToken(")", ")"))
	invocation.Children = append(invocation.Children, args)

	return &Node{
		Kind:     KindStatement,
		Type:     "expression_statement",
		Span:     syntheticSpan,
		Children: []*Node{invocation, syntheticToken(";", ";")},
	}
}

func syntheticToken(typ, text string) *Node {
	return &Node{Kind: KindToken, Type: typ, Span: syntheticSpan, Text: text}
}

// quoteString renders s as a regular C# string literal.
func quoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case 0:
			sb.WriteString(`\0`)
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\v':
			sb.WriteString(`\v`)
		case '\u0085', '\u2028', '\u2029': // line terminators in C#
			fmt.Fprintf(&sb, `\u%04X`, r)
		default:
			if r < 0x20 || r == utf8.RuneError && size == 1 {
				fmt.Fprintf(&sb, `\u%04X`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
