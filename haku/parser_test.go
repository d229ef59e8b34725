package haku

import (
	"strings"
	"testing"
)

func parseSource(t *testing.T, source string) (*Ast, NodeID, SourceCode, []Diagnostic) {
	t.Helper()
	code, err := NewSourceCode(source, 65536)
	if err != nil {
		t.Fatalf("NewSourceCode(%q): %v", source, err)
	}
	tokens := NewTokenStore(1024)
	lexer := NewLexer(code, tokens)
	_ = lexer.Lex()

	parser := NewParser(tokens, 1024)
	parser.ParseToplevel()
	ast := NewAst(1024)
	root := parser.IntoAst(ast)

	diagnostics := append(lexer.Diagnostics(), parser.Diagnostics()...)
	return ast, root, code, diagnostics
}

// expectTree checks the dumped parse tree against an indented literal.
func expectTree(t *testing.T, source, want string) {
	t.Helper()
	ast, root, code, diagnostics := parseSource(t, source)
	if len(diagnostics) != 0 {
		t.Errorf("parse(%q): diagnostics = %v, want none", source, diagnostics)
	}
	got := strings.TrimSpace(ast.Dump(root, code))
	want = strings.TrimSpace(want)
	if got != want {
		t.Errorf("parse(%q):\ngot:\n%s\nwant:\n%s", source, got, want)
	}
}

func TestParsePrecedence(t *testing.T) {
	expectTree(t, "1 + 2 * 3", `
Toplevel
  Binary
    Number 1
    Op +
    Binary
      Number 2
      Op *
      Number 3
`)
}

func TestParseLeftAssociativity(t *testing.T) {
	expectTree(t, "1 - 2 - 3", `
Toplevel
  Binary
    Binary
      Number 1
      Op -
      Number 2
    Op -
    Number 3
`)
}

func TestParseApplication(t *testing.T) {
	expectTree(t, "f x y", `
Toplevel
  Call
    Ident f
    Ident x
    Ident y
`)
}

func TestParseApplicationBindsTighterThanOperators(t *testing.T) {
	expectTree(t, "f x + g y", `
Toplevel
  Binary
    Call
      Ident f
      Ident x
    Op +
    Call
      Ident g
      Ident y
`)
}

func TestParseMinusAfterExpressionIsSubtraction(t *testing.T) {
	expectTree(t, "f -4", `
Toplevel
  Binary
    Ident f
    Op -
    Number 4
`)
	expectTree(t, "f (-4)", `
Toplevel
  Call
    Ident f
    Paren
      Unary
        Op -
        Number 4
`)
}

func TestParseLambda(t *testing.T) {
	expectTree(t, `\x, y -> x + y`, `
Toplevel
  Lambda
    Params
      Param x
      Param y
    Binary
      Ident x
      Op +
      Ident y
`)
}

func TestParseIf(t *testing.T) {
	expectTree(t, "if (a) 1 else 2", `
Toplevel
  If
    Ident a
    Number 1
    Number 2
`)
}

func TestParseIfElseOnNextLine(t *testing.T) {
	expectTree(t, "if (a) 1\nelse 2", `
Toplevel
  If
    Ident a
    Number 1
    Number 2
`)
}

func TestParseLet(t *testing.T) {
	expectTree(t, "let x = 1\nx + x", `
Toplevel
  Let
    Ident x
    Number 1
    Binary
      Ident x
      Op +
      Ident x
`)
}

func TestParseList(t *testing.T) {
	expectTree(t, "[1, 2, 3]", `
Toplevel
  List
    Number 1
    Number 2
    Number 3
`)
	expectTree(t, "[\n1\n2\n3\n]", `
Toplevel
  List
    Number 1
    Number 2
    Number 3
`)
}

func TestParseParens(t *testing.T) {
	expectTree(t, "(a + b) * c", `
Toplevel
  Binary
    Paren
      Binary
        Ident a
        Op +
        Ident b
    Op *
    Ident c
`)
	expectTree(t, "()", `
Toplevel
  ParenEmpty
`)
}

func TestParseToplevelDefs(t *testing.T) {
	expectTree(t, "x = 1\ny = 2\nx + y", `
Toplevel
  Binary
    Ident x
    Op =
    Number 1
  Binary
    Ident y
    Op =
    Number 2
  Binary
    Ident x
    Op +
    Ident y
`)
}

func TestParseMissingElse(t *testing.T) {
	_, _, _, diagnostics := parseSource(t, "if (a) 1")
	found := false
	for _, d := range diagnostics {
		if strings.Contains(d.Message, "'else'") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want a complaint about the missing else", diagnostics)
	}
}

func TestParseErrorRecovery(t *testing.T) {
	// A bad line must not take the rest of the program down with it.
	ast, root, code, diagnostics := parseSource(t, "@@@\nf x")
	if len(diagnostics) == 0 {
		t.Fatal("expected diagnostics for the invalid line")
	}
	dump := ast.Dump(root, code)
	if !strings.Contains(dump, "Call") {
		t.Errorf("dump does not contain the recovered call:\n%s", dump)
	}
}

func TestParseEventLimit(t *testing.T) {
	code, _ := NewSourceCode(strings.Repeat("f x\n", 100), 65536)
	tokens := NewTokenStore(4096)
	lexer := NewLexer(code, tokens)
	_ = lexer.Lex()

	parser := NewParser(tokens, 16)
	parser.ParseToplevel()
	ast := NewAst(4096)
	parser.IntoAst(ast)

	found := false
	for _, d := range parser.Diagnostics() {
		if strings.Contains(d.Message, "too many parser events") {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %v, want the event limit", parser.Diagnostics())
	}
}

func TestParseUnbalancedEventsStillMaterialize(t *testing.T) {
	// Broken input may leave nodes open; IntoAst must close them instead of
	// panicking.
	ast, root, _, _ := parseSource(t, "(a + (b")
	if root == NilNode {
		t.Error("root = NilNode, want a tree")
	}
	if ast.Kind(root) != NodeToplevel {
		t.Errorf("root kind = %v, want Toplevel", ast.Kind(root))
	}
}
