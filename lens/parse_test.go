package lens

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fidelitySources = map[string]string{
	"class": "class C {\n    void M() { return; }\n}\n",
	"usings": `using System;
using System.Collections.Generic;

namespace Demo
{
    /// <summary>Docs.</summary>
    public class Greeter
    {
        private readonly string _name; // trailing comment

        public Greeter(string name) => _name = name;

        public string Greet(int times)
        {
            /* block
               comment */
            var parts = new List<string>();
            for (var i = 0; i < times; i++)
            {
                parts.Add($"Hello {_name} #{i}");
            }
            return string.Join(", ", parts) + @"verbatim ""quoted"" {braces}";
        }
    }
}
`,
	"crlf":       "class C\r\n{\r\n    int P => 1;\r\n\r\n    void M()\r\n    {\r\n        char c = '}';\r\n    }\r\n}\r\n",
	"no_newline": "interface I { void M(); }",
	"unicode":    "class Greeting {\n    void Count() { var s = \"grüße → ä\"; }\n}\n",
	"empty":      "",
	"comment":    "// only a comment\n",
}

func TestParseFullTextFidelity(t *testing.T) {
	t.Parallel()

	for name, src := range fidelitySources {
		t.Run(name, func(t *testing.T) {
			tree, err := Parse(src)
			require.NoError(t, err)

			assert.Equal(t, src, tree.Root.FullText())
			assert.Equal(t, KindCompilationUnit, tree.Root.Kind)
			last := tree.Root.Children[len(tree.Root.Children)-1]
			assert.Equal(t, eofType, last.Type)
		})
	}
}

func TestParseSubtreeFidelity(t *testing.T) {
	t.Parallel()

	src := fidelitySources["usings"]
	tree, err := Parse(src)
	require.NoError(t, err)

	var checked int
	tree.Root.Walk(func(n *Node) bool {
		if n.Kind == KindToken {
			assert.Equal(t, src[n.Span.Start:n.Span.End], n.Text)
			return false
		}
		full := n.FullText()
		start := n.FullStart()
		require.GreaterOrEqual(t, start, 0)
		assert.Equal(t, src[start:start+len(full)], full, n.Type)
		checked++
		return true
	})
	assert.Positive(t, checked)
}

func findToken(root *Node, text string, nth int) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == KindToken && n.Text == text {
			if nth == 0 {
				found = n
			}
			nth--
		}
		return true
	})
	return found
}

func findType(root *Node, typ string) []*Node {
	var found []*Node
	root.Walk(func(n *Node) bool {
		if n.Type == typ {
			found = append(found, n)
		}
		return true
	})
	return found
}

func TestParseTriviaSplit(t *testing.T) {
	t.Parallel()

	src := "class C\n{\n    int a; // note\n\n    /* x\n y */ int b;\n}\n"
	tree, err := Parse(src)
	require.NoError(t, err)

	semi := findToken(tree.Root, ";", 0)
	require.NotNil(t, semi)
	assert.Equal(t, " // note\n", semi.Trailing)

	second := findToken(tree.Root, "int", 1)
	require.NotNil(t, second)
	assert.Equal(t, "\n    /* x\n y */ ", second.Leading)

	open := findToken(tree.Root, "{", 0)
	require.NotNil(t, open)
	assert.Equal(t, "\n", open.Trailing)
	assert.Equal(t, "\n", findToken(tree.Root, "C", 0).Trailing)
}

func TestParseDeclarations(t *testing.T) {
	t.Parallel()

	src := `abstract class C {
    void Block() { Run(); }
    int Arrow() => 1;
    abstract void Signature();
}`
	tree, err := Parse(src)
	require.NoError(t, err)

	methods := findType(tree.Root, "method_declaration")
	require.Len(t, methods, 3)
	for _, m := range methods {
		assert.Equal(t, KindMethodDeclaration, m.Kind)
	}

	assert.Equal(t, "Block", methods[0].Name())
	require.NotNil(t, methods[0].Body())
	assert.Nil(t, methods[0].ExpressionBody())
	assert.Len(t, methods[0].Body().Elements(), 1)

	assert.Equal(t, "Arrow", methods[1].Name())
	assert.Nil(t, methods[1].Body())
	require.NotNil(t, methods[1].ExpressionBody())
	assert.Equal(t, "1", methods[1].ExpressionBody().ArrowExpression().TokenText())
	assert.NotNil(t, methods[1].Terminator())

	assert.Equal(t, "Signature", methods[2].Name())
	assert.Nil(t, methods[2].Body())
	assert.Nil(t, methods[2].ExpressionBody())

	classes := findType(tree.Root, "class_declaration")
	require.Len(t, classes, 1)
	assert.Equal(t, KindTypeDeclaration, classes[0].Kind)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unterminated_comment": "class C {\n    /* never closed\n}\n",
		"unterminated_string":  "class C {\n    string s = \"abc;\n}\n",
		"missing_brace":        "class C {\n    void M() {\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.True(t, IsSkippableRewriteError(err))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.GreaterOrEqual(t, perr.Pos.Line, 1)
			assert.LessOrEqual(t, perr.Pos.Line, 4)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}

func TestNodeClone(t *testing.T) {
	t.Parallel()

	tree, err := Parse("class C { void M() {} }")
	require.NoError(t, err)

	clone := tree.Root.Clone()
	findToken(clone, "M", 0).Text = "N"
	assert.Equal(t, "class C { void N() {} }", clone.FullText())
	assert.Equal(t, "class C { void M() {} }", tree.Root.FullText())
}

func TestNodeTrivia(t *testing.T) {
	t.Parallel()

	tree, err := Parse("class C\n{\n    int A()\n        // a\n        => 1; // one\n}\n")
	require.NoError(t, err)

	methods := findType(tree.Root, "method_declaration")
	require.Len(t, methods, 1)
	exprBody := methods[0].ExpressionBody()
	require.NotNil(t, exprBody)
	assert.Equal(t, "        // a\n        ", exprBody.LeadingTrivia())
	assert.Equal(t, " // one\n", methods[0].Terminator().TrailingTrivia())
	assert.Equal(t, "intA()=>1;", methods[0].TokenText())
	assert.Empty(t, (&Node{Kind: KindBlock}).LeadingTrivia())
	assert.Empty(t, (&Node{Kind: KindBlock}).TrailingTrivia())
}
