package lens

import (
	"slices"
)

// Stats counts what a rewrite changed.
type Stats struct {
	Methods          int `json:"methods" msgpack:"m"`           // declarations that received an entry statement
	ExpressionBodies int `json:"expression_bodies" msgpack:"e"` // of those, converted from `=> expr;`
	EmptyBodies      int `json:"empty_bodies" msgpack:"b"`      // of those, bodies without statements
	Passthrough      int `json:"passthrough" msgpack:"p"`       // selected declarations without any body
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Methods += other.Methods
	s.ExpressionBodies += other.ExpressionBodies
	s.EmptyBodies += other.EmptyBodies
	s.Passthrough += other.Passthrough
}

type transformer struct {
	unit   *SourceUnit
	path   string
	callee string
	kinds  map[string]bool
	nl     string
	stats  Stats
}

// transform returns an instrumented copy of n, n itself is left untouched.
func (t *transformer) transform(n *Node) (*Node, error) {
	switch n.Kind {
	case KindToken:
		tok := *n
		return &tok, nil
	case KindMethodDeclaration:
		if t.kinds[n.Type] {
			return t.instrument(n)
		}
		return t.copyChildren(n)
	case KindCompilationUnit, KindTypeDeclaration, KindBlock, KindStatement, KindExpression, KindSyntax:
		return t.copyChildren(n)
	default:
		return nil, t.violation(n, "unknown node kind "+n.Kind.String())
	}
}

func (t *transformer) copyChildren(n *Node) (*Node, error) {
	out := *n
	out.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		var err error
		if out.Children[i], err = t.transform(c); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (t *transformer) instrument(n *Node) (*Node, error) {
	body, exprBody := n.Body(), n.ExpressionBody()
	if body != nil && exprBody != nil {
		return nil, t.violation(n, "declaration has both a block and an expression body")
	} else if body == nil && exprBody == nil {
		t.stats.Passthrough++
		return t.copyChildren(n) // abstract, interface or extern declaration
	}

	out, err := t.copyChildren(n)
	if err != nil {
		return nil, err
	}
	if body != nil {
		err = t.instrumentBlock(n, out, body)
	} else {
		err = t.instrumentExpressionBody(n, out, exprBody)
	}
	if err != nil {
		return nil, err
	}
	t.stats.Methods++
	return out, nil
}

// instrumentBlock inserts the entry statement as the first element of the copied body.
func (t *transformer) instrumentBlock(decl, out, body *Node) error {
	closeBrace := body.CloseBrace()
	if body.OpenBrace() == nil || closeBrace == nil {
		return t.violation(body, "block body without braces")
	}

	anchorNode := closeBrace
	elements := body.Elements()
	if len(elements) > 0 {
		anchorNode = elements[0]
	} else {
		t.stats.EmptyBodies++
	}
	anchorOffset := anchorNode.FullStart()
	if anchorOffset < 0 {
		return t.violation(body, "no original position to anchor the line mapping")
	}
	anchorLine := t.unit.Position(anchorOffset).Line
	// the injected lines need their own line when the body closes on the anchor line, e.g. `{}`
	blankLine := t.unit.Position(closeBrace.Span.Start).Line == anchorLine

	newBody := out.Children[slices.Index(decl.Children, body)]
	newBody.Children = slices.Insert(newBody.Children, 1, t.entryStatement(decl.Name(), anchorLine, blankLine))
	return nil
}

// instrumentExpressionBody replaces `=> expr;` with a block holding the entry statement and expr.
func (t *transformer) instrumentExpressionBody(decl, out, exprBody *Node) error {
	terminator := decl.Terminator()
	expr := exprBody.ArrowExpression()
	arrow := exprBody.FirstToken()
	if terminator == nil || expr == nil || arrow == nil {
		return t.violation(exprBody, "incomplete expression body")
	}
	anchorOffset := expr.FullStart()
	if anchorOffset < 0 {
		return t.violation(exprBody, "no original position to anchor the line mapping")
	}
	anchorLine := t.unit.Position(anchorOffset).Line
	t.stats.ExpressionBodies++

	arrowIdx := slices.Index(decl.Children, exprBody)
	newExpr := out.Children[arrowIdx].ArrowExpression()

	openBrace := syntheticToken("{", "{")
	openBrace.Leading = exprBody.LeadingTrivia()
	openBrace.Trailing = arrow.Trailing
	semicolon := syntheticToken(";", ";")
	semicolon.Leading = terminator.LeadingTrivia()
	closeBrace := syntheticToken("}", "}")
	closeBrace.Trailing = terminator.TrailingTrivia()

	block := &Node{
		Kind: KindBlock,
		Type: "block",
		Span: syntheticSpan,
		Children: []*Node{
			openBrace,
			t.entryStatement(decl.Name(), anchorLine, true),
			{Kind: KindStatement, Type: "expression_statement", Span: syntheticSpan, Children: []*Node{newExpr, semicolon}},
			closeBrace,
		},
	}

	termIdx := slices.Index(decl.Children, terminator)
	out.Children[arrowIdx] = block
	out.Children = slices.Delete(out.Children, termIdx, termIdx+1)
	return nil
}

// entryStatement formats the injected call framed by line directives:
// [blank line] #line hidden, the call, #line <anchor> "<path>".
func (t *transformer) entryStatement(name string, anchorLine int, blankLine bool) *Node {
	stmt := EntryCall(t.callee, name).Statement()
	leading := HiddenDirective().String() + t.nl
	if blankLine {
		leading = t.nl + leading
	}
	stmt.FirstToken().Leading = leading
	stmt.LastToken().Trailing = t.nl + ResumeDirective(anchorLine, t.path).String() + t.nl
	return stmt
}

func (t *transformer) violation(n *Node, reason string) error {
	offset := n.FullStart()
	if offset < 0 {
		offset = 0
	}
	return &InvariantViolation{Pos: t.unit.Position(offset), Reason: reason}
}
