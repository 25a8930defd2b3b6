package lens

import (
	"strings"
)

// Kind is the closed set of node variants in a syntax tree.
type Kind uint8

const (
	KindToken Kind = iota
	KindCompilationUnit
	KindTypeDeclaration
	KindMethodDeclaration
	KindBlock
	KindStatement
	KindExpression
	KindSyntax // any other interior construct (parameter lists, namespaces, attributes, ...)
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "Token"
	case KindCompilationUnit:
		return "CompilationUnit"
	case KindTypeDeclaration:
		return "TypeDeclaration"
	case KindMethodDeclaration:
		return "MethodDeclaration"
	case KindBlock:
		return "Block"
	case KindStatement:
		return "Statement"
	case KindExpression:
		return "Expression"
	case KindSyntax:
		return "Syntax"
	default:
		return "Unknown"
	}
}

// Span is a half-open byte range into the original SourceUnit, excluding trivia.
type Span struct {
	Start, End int
}

var syntheticSpan = Span{Start: -1, End: -1}

// Synthetic reports if the span does not refer to original text.
func (s Span) Synthetic() bool {
	return s.Start < 0
}

// Node is a full-fidelity syntax tree node. Only tokens carry text and trivia; the trivia of an
// interior node is the leading trivia of its first token and the trailing trivia of its last.
type Node struct {
	Kind     Kind
	Type     string // grammar type, e.g. "method_declaration", "{", "identifier"
	Field    string // grammar field name within the parent, when known
	Span     Span
	Children []*Node

	// token fields
	Text     string
	Leading  string
	Trailing string
}

// FullText concatenates leading trivia, text and trailing trivia of every token below n.
func (n *Node) FullText() string {
	var sb strings.Builder
	n.writeFull(&sb)
	return sb.String()
}

func (n *Node) writeFull(sb *strings.Builder) {
	n.Walk(func(c *Node) bool {
		if c.Kind == KindToken {
			sb.WriteString(c.Leading)
			sb.WriteString(c.Text)
			sb.WriteString(c.Trailing)
		}
		return true
	})
}

// TokenText concatenates the token texts below n without any trivia.
func (n *Node) TokenText() string {
	if n.Kind == KindToken {
		return n.Text
	}
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Kind == KindToken {
			sb.WriteString(c.Text)
		}
		return true
	})
	return sb.String()
}

// FirstToken returns the first token below n, or nil if n has no tokens.
func (n *Node) FirstToken() *Node {
	if n.Kind == KindToken {
		return n
	}
	for _, c := range n.Children {
		if t := c.FirstToken(); t != nil {
			return t
		}
	}
	return nil
}

// LastToken returns the last token below n, or nil if n has no tokens.
func (n *Node) LastToken() *Node {
	if n.Kind == KindToken {
		return n
	}
	for i := len(n.Children) - 1; i >= 0; i-- {
		if t := n.Children[i].LastToken(); t != nil {
			return t
		}
	}
	return nil
}

// LeadingTrivia returns the trivia before the first token of n.
func (n *Node) LeadingTrivia() string {
	if t := n.FirstToken(); t != nil {
		return t.Leading
	}
	return ""
}

// TrailingTrivia returns the trivia after the last token of n.
func (n *Node) TrailingTrivia() string {
	if t := n.LastToken(); t != nil {
		return t.Trailing
	}
	return ""
}

// FullStart is the original offset where the leading trivia of n begins, -1 for synthetic nodes.
func (n *Node) FullStart() int {
	t := n.FirstToken()
	if t == nil || t.Span.Synthetic() {
		return -1
	}
	return t.Span.Start - len(t.Leading)
}

// Clone deep copies n.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Walk visits n and its descendants in source order until fn returns false for a node, which
// skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) childOfType(typ string) *Node {
	for _, c := range n.Children {
		if c.Type == typ {
			return c
		}
	}
	return nil
}

// Body returns the block body of a method declaration, or nil.
func (n *Node) Body() *Node {
	if n.Kind != KindMethodDeclaration {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == KindBlock {
			return c
		}
	}
	return nil
}

// ExpressionBody returns the `=> expr` clause of a method declaration, or nil.
func (n *Node) ExpressionBody() *Node {
	if n.Kind != KindMethodDeclaration {
		return nil
	}
	return n.childOfType(arrowClauseType)
}

// Terminator returns the `;` token directly owned by a declaration, or nil.
func (n *Node) Terminator() *Node {
	for _, c := range n.Children {
		if c.Kind == KindToken && c.Type == ";" {
			return c
		}
	}
	return nil
}

// Name returns the identifier text of a method-like declaration.
func (n *Node) Name() string {
	for _, c := range n.Children {
		if c.Field == "name" {
			return c.TokenText()
		}
	}
	// the name is the last identifier before the parameter list
	var name *Node
	for _, c := range n.Children {
		if c.Type == "parameter_list" {
			break
		} else if c.Type == "identifier" {
			name = c
		}
	}
	if name == nil {
		return ""
	}
	return name.TokenText()
}

// OpenBrace returns the `{` token of a block.
func (n *Node) OpenBrace() *Node {
	if n.Kind != KindBlock || len(n.Children) == 0 || n.Children[0].Type != "{" {
		return nil
	}
	return n.Children[0]
}

// CloseBrace returns the `}` token of a block.
func (n *Node) CloseBrace() *Node {
	if n.Kind != KindBlock || len(n.Children) == 0 || n.Children[len(n.Children)-1].Type != "}" {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

// Elements returns the block members between the braces, usually statements.
func (n *Node) Elements() []*Node {
	if n.OpenBrace() == nil || n.CloseBrace() == nil {
		return nil
	}
	return n.Children[1 : len(n.Children)-1]
}

// ArrowExpression returns the expression of a `=> expr` clause.
func (n *Node) ArrowExpression() *Node {
	for _, c := range n.Children {
		if c.Kind != KindToken || c.Type != "=>" {
			return c
		}
	}
	return nil
}
