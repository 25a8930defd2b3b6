package lens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/c_sharp"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

const (
	arrowClauseType = "arrow_expression_clause"
	commentType     = "comment"
	errorType       = "ERROR"
	eofType         = "eof"
)

// atomicTypes are emitted as a single token even though the grammar gives them inner structure.
var atomicTypes = map[string]bool{
	"string_literal":          true,
	"verbatim_string_literal": true,
	"raw_string_literal":      true,
	"character_literal":       true,
}

var typeDeclarationTypes = map[string]bool{
	"class_declaration":         true,
	"struct_declaration":        true,
	"interface_declaration":     true,
	"record_declaration":        true,
	"record_struct_declaration": true,
	"enum_declaration":          true,
}

// methodLikeTypes are the declarations that may own a block or expression body.
var methodLikeTypes = map[string]bool{
	"method_declaration":              true,
	"constructor_declaration":         true,
	"destructor_declaration":          true,
	"local_function_statement":        true,
	"operator_declaration":            true,
	"conversion_operator_declaration": true,
}

var csharpLanguage = sync.OnceValue(func() *sitter.Language {
	return sitter.NewLanguage(c_sharp.GetLanguage())
})

var tsParserPool = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(csharpLanguage())
		return p
	},
}

// Tree is a parsed compilation unit.
type Tree struct {
	Unit *SourceUnit
	Root *Node
}

// Parse builds a full-fidelity syntax tree for C# source text.
func Parse(text string) (*Tree, error) {
	unit := NewSourceUnit(text)
	root, err := parseUnit(unit)
	if err != nil {
		return nil, err
	}
	return &Tree{Unit: unit, Root: root}, nil
}

func parseUnit(unit *SourceUnit) (*Node, error) {
	tsParser := tsParserPool.Get().(*sitter.Parser)
	defer tsParserPool.Put(tsParser)

	content := []byte(unit.Text())
	tsTree, err := tsParser.ParseString(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failure: %w", err)
	}
	defer tsTree.Close()

	tsRoot := tsTree.RootNode()
	if tsRoot.IsNull() {
		return nil, &ParseError{Pos: unit.Position(0), Reason: "no syntax tree produced"}
	} else if tsRoot.HasError() {
		return nil, firstSyntaxError(unit, tsRoot)
	}

	b := &treeBuilder{unit: unit}
	root := &Node{
		Kind: KindCompilationUnit,
		Type: tsRoot.Type(),
		Span: Span{Start: 0, End: len(unit.Text())},
	}
	for i := range tsRoot.ChildCount() {
		if child := b.convert(tsRoot.Child(i), tsRoot); child != nil {
			root.Children = append(root.Children, child)
		}
	}
	eof := &Node{Kind: KindToken, Type: eofType, Span: Span{Start: len(unit.Text()), End: len(unit.Text())}}
	root.Children = append(root.Children, eof)
	b.tokens = append(b.tokens, eof)
	b.attachTrivia()
	return root, nil
}

// firstSyntaxError locates the first error or missing node in source order.
func firstSyntaxError(unit *SourceUnit, n sitter.Node) *ParseError {
	if n.Type() == errorType {
		return &ParseError{Pos: unit.Position(int(n.StartByte())), Reason: "unexpected syntax"}
	} else if n.IsMissing() {
		return &ParseError{Pos: unit.Position(int(n.StartByte())), Reason: "missing " + n.Type()}
	}
	for i := range n.ChildCount() {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() || child.Type() == errorType {
			if perr := firstSyntaxError(unit, child); perr != nil {
				return perr
			}
		}
	}
	if n.HasError() {
		// error flagged without a visible error node, report the enclosing construct
		return &ParseError{Pos: unit.Position(int(n.StartByte())), Reason: "invalid " + n.Type()}
	}
	return nil
}

type treeBuilder struct {
	unit     *SourceUnit
	tokens   []*Node
	comments []Span // sorted, trivia only
}

func (b *treeBuilder) convert(n, parent sitter.Node) *Node {
	typ := n.Type()
	span := Span{Start: int(n.StartByte()), End: int(n.EndByte())}
	if typ == commentType {
		b.comments = append(b.comments, span)
		return nil
	}

	if n.ChildCount() == 0 || atomicTypes[typ] {
		tok := &Node{
			Kind: KindToken,
			Type: typ,
			Span: span,
			Text: b.unit.Slice(span.Start, span.End),
		}
		b.markField(tok, n, parent)
		b.tokens = append(b.tokens, tok)
		return tok
	}

	node := &Node{Kind: classifyType(typ), Type: typ, Span: span}
	b.markField(node, n, parent)
	for i := range n.ChildCount() {
		if child := b.convert(n.Child(i), n); child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node
}

func (b *treeBuilder) markField(node *Node, n, parent sitter.Node) {
	if !methodLikeTypes[parent.Type()] {
		return // only the declaration names are needed
	}
	name := parent.ChildByFieldName("name")
	if !name.IsNull() && name.StartByte() == n.StartByte() && name.EndByte() == n.EndByte() {
		node.Field = "name"
	}
}

func classifyType(typ string) Kind {
	switch {
	case typ == "compilation_unit":
		return KindCompilationUnit
	case typeDeclarationTypes[typ]:
		return KindTypeDeclaration
	case methodLikeTypes[typ]:
		return KindMethodDeclaration
	case typ == "block":
		return KindBlock
	case strings.HasSuffix(typ, "_statement"):
		return KindStatement
	case strings.HasSuffix(typ, "_expression"), strings.HasSuffix(typ, "_literal"):
		return KindExpression
	default:
		return KindSyntax
	}
}

// attachTrivia distributes the text between tokens: a token's trailing trivia runs through the
// first line break after it, the remainder becomes the leading trivia of the next token.
func (b *treeBuilder) attachTrivia() {
	text := b.unit.Text()
	prevEnd := 0
	commentIdx := 0
	for i, tok := range b.tokens {
		gapStart := prevEnd
		if i > 0 {
			var split int
			split, commentIdx = b.trailingEnd(text, gapStart, tok.Span.Start, commentIdx)
			b.tokens[i-1].Trailing = text[gapStart:split]
			gapStart = split
		}
		tok.Leading = text[gapStart:tok.Span.Start]
		prevEnd = tok.Span.End
	}
}

// trailingEnd returns the offset just past the first line break in [start, end) that is not
// inside a comment, or end if there is none.
func (b *treeBuilder) trailingEnd(text string, start, end, commentIdx int) (int, int) {
	for commentIdx < len(b.comments) && b.comments[commentIdx].Start < start {
		commentIdx++
	}
	for i := start; i < end; i++ {
		if commentIdx < len(b.comments) && b.comments[commentIdx].Start == i {
			i = b.comments[commentIdx].End - 1
			commentIdx++
			continue
		} else if text[i] == '\n' {
			return i + 1, commentIdx
		}
	}
	return end, commentIdx
}
