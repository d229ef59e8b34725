package brush

import (
	"errors"
	"testing"

	"github.com/rakugaki/rakugaki/vm"
)

func evalSource(t *testing.T, source string) (vm.Value, *Brush) {
	t.Helper()
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush(source); err != nil {
		t.Fatalf("SetBrush(%q): %v", source, err)
	}
	value, err := b.Eval()
	if err != nil {
		t.Fatalf("Eval(%q): %v", source, err)
	}
	return value, b
}

func evalNumber(t *testing.T, source string) float32 {
	t.Helper()
	value, _ := evalSource(t, source)
	n, ok := value.Number()
	if !ok {
		t.Fatalf("Eval(%q) = %v, want a number", source, value)
	}
	return n
}

func evalException(t *testing.T, source string) *vm.Exception {
	t.Helper()
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush(source); err != nil {
		t.Fatalf("SetBrush(%q): %v", source, err)
	}
	_, err := b.Eval()
	var exc *vm.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("Eval(%q) err = %v, want an exception", source, err)
	}
	return exc
}

// ---------------------------------------------------------------------------
// Values and arithmetic
// ---------------------------------------------------------------------------

func TestEvalUnit(t *testing.T) {
	value, _ := evalSource(t, "()")
	if value.Truthy() {
		t.Errorf("() = %v, want Nil", value)
	}
	if !value.Equal(vm.NilValue()) {
		t.Errorf("() = %v, want Nil", value)
	}
}

func TestEvalNumbers(t *testing.T) {
	tests := []struct {
		source string
		want   float32
	}{
		{"123", 123},
		{"3.5", 3.5},
		{"1 + 2 + 3 + 4", 10},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 - 2 - 3", 5},
		{"8 / 2", 4},
		{"-5 + 10", 5},
	}

	for _, tc := range tests {
		if got := evalNumber(t, tc.source); got != tc.want {
			t.Errorf("eval(%q) = %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestEvalBooleans(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"True", true},
		{"False", false},
		{"1 < 2", true},
		{"2 <= 1", false},
		{"2 > 1", true},
		{"1 >= 2", false},
		{"1 == 1", true},
		{"1 != 1", false},
		{"! (1 == 1)", false},
		{"() == ()", true},
		{"1 == True", false},
	}

	for _, tc := range tests {
		value, _ := evalSource(t, tc.source)
		if !value.Equal(vm.BooleanValue(tc.want)) {
			t.Errorf("eval(%q) = %v, want %v", tc.source, value, tc.want)
		}
	}
}

func TestEvalIf(t *testing.T) {
	if got := evalNumber(t, "if (1 < 2) 10 else 20"); got != 10 {
		t.Errorf("then branch = %v, want 10", got)
	}
	if got := evalNumber(t, "if (1 > 2) 10 else 20"); got != 20 {
		t.Errorf("else branch = %v, want 20", got)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func TestEvalLambdaCall(t *testing.T) {
	if got := evalNumber(t, `(\x -> x + 2) 2`); got != 4 {
		t.Errorf("lambda call = %v, want 4", got)
	}
}

func TestEvalCurriedCall(t *testing.T) {
	if got := evalNumber(t, `((\x -> \y -> x + y) 1) 3`); got != 4 {
		t.Errorf("curried call = %v, want 4", got)
	}
}

func TestEvalCaptureChain(t *testing.T) {
	// x travels through two intermediate scopes.
	if got := evalNumber(t, `(((\x -> \_ -> \_ -> x) 4) ()) ()`); got != 4 {
		t.Errorf("capture chain = %v, want 4", got)
	}
}

func TestEvalDefs(t *testing.T) {
	if got := evalNumber(t, "x = 1\ny = 2\nx + y"); got != 3 {
		t.Errorf("defs = %v, want 3", got)
	}
}

func TestEvalLet(t *testing.T) {
	tests := []struct {
		source string
		want   float32
	}{
		{"let x = 1\nx", 1},
		{"let x = 1\nlet y = 2\nx + y", 3},
		{"let x = 2\nlet x = x * 3\nx", 6},
	}

	for _, tc := range tests {
		if got := evalNumber(t, tc.source); got != tc.want {
			t.Errorf("eval(%q) = %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestEvalRecursion(t *testing.T) {
	source := `fib = \n ->
  if (n < 2) n
  else fib (n - 1) + fib (n - 2)
fib 10`
	if got := evalNumber(t, source); got != 55 {
		t.Errorf("fib 10 = %v, want 55", got)
	}
}

func TestEvalMutualRecursion(t *testing.T) {
	source := `f = \n -> if (n < 12) g (n + 1) else n
g = \n -> f (n + 2)
f 1`
	if got := evalNumber(t, source); got != 13 {
		t.Errorf("mutual recursion = %v, want 13", got)
	}
}

func TestEvalTailRecursionRunsOutOfFuel(t *testing.T) {
	// Self-application in tail position loops in constant call stack space,
	// so the fuel meter is what finally stops it.
	exc := evalException(t, "f = \\x -> f x\nf ()")
	if exc.Kind != vm.OutOfFuel {
		t.Errorf("exception = %v (%v), want OutOfFuel", exc.Kind, exc)
	}
}

func TestEvalDeepRecursionOverflowsCallStack(t *testing.T) {
	// The +1 keeps the recursive call out of tail position.
	exc := evalException(t, "f = \\x -> (f x) + 1\nf ()")
	if exc.Kind != vm.TooMuchRecursion {
		t.Errorf("exception = %v (%v), want TooMuchRecursion", exc.Kind, exc)
	}
}

// ---------------------------------------------------------------------------
// Intrinsics
// ---------------------------------------------------------------------------

func TestEvalVec(t *testing.T) {
	tests := []struct {
		source string
		want   float32
	}{
		{"vecX (vec 1 2 3 4)", 1},
		{"vecY (vec 1 2 3 4)", 2},
		{"vecZ (vec 1 2 3 4)", 3},
		{"vecW (vec 1 2 3 4)", 4},
		{"vecW (vec 1 2)", 0},
	}

	for _, tc := range tests {
		if got := evalNumber(t, tc.source); got != tc.want {
			t.Errorf("eval(%q) = %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestEvalRgba(t *testing.T) {
	tests := []struct {
		source string
		want   float32
	}{
		{"rgbaR (rgba 1 2 3 4)", 1},
		{"rgbaG (rgba 1 2 3 4)", 2},
		{"rgbaB (rgba 1 2 3 4)", 3},
		{"rgbaA (rgba 1 2 3 4)", 4},
		{"rgbaA #ff000080", 128.0 / 255.0},
	}

	for _, tc := range tests {
		if got := evalNumber(t, tc.source); got != tc.want {
			t.Errorf("eval(%q) = %v, want %v", tc.source, got, tc.want)
		}
	}
}

func TestEvalScribble(t *testing.T) {
	value, b := evalSource(t, "stroke 8 #f00 (vec 0 0)")
	ref := b.Machine().DerefValue(value)
	if ref == nil || ref.Kind != vm.RefScribble {
		t.Fatalf("eval = %v, want a scribble ref", value)
	}
	if ref.Scribble.Thickness != 8 {
		t.Errorf("thickness = %v, want 8", ref.Scribble.Thickness)
	}
	if ref.Scribble.Shape.Kind != vm.ShapePoint {
		t.Errorf("shape kind = %v, want point", ref.Scribble.Shape.Kind)
	}
}

func TestEvalScribbleList(t *testing.T) {
	value, b := evalSource(t, `
[
  stroke 1 #f00 (vec 0 0)
  stroke 2 #0f0 (vec 1 1)
]`)
	ref := b.Machine().DerefValue(value)
	if ref == nil || ref.Kind != vm.RefList {
		t.Fatalf("eval = %v, want a list ref", value)
	}
	if len(ref.List) != 2 {
		t.Errorf("list length = %d, want 2", len(ref.List))
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	exc := evalException(t, "1 / 0")
	if exc.Kind != vm.DivisionByZero {
		t.Errorf("exception = %v (%v), want DivisionByZero", exc.Kind, exc)
	}
}

func TestEvalTypeMismatch(t *testing.T) {
	exc := evalException(t, "1 + True")
	if exc.Kind != vm.TypeMismatch {
		t.Errorf("exception = %v (%v), want TypeMismatch", exc.Kind, exc)
	}
}

func TestEvalCallingNonFunction(t *testing.T) {
	exc := evalException(t, "x = 1\nx ()")
	if exc.Kind != vm.TypeMismatch {
		t.Errorf("exception = %v (%v), want TypeMismatch", exc.Kind, exc)
	}
}

func TestEvalArityMismatch(t *testing.T) {
	exc := evalException(t, `(\x -> x) 1 2`)
	if exc.Kind != vm.ArityMismatch {
		t.Errorf("exception = %v (%v), want ArityMismatch", exc.Kind, exc)
	}
}

// ---------------------------------------------------------------------------
// Brush lifecycle
// ---------------------------------------------------------------------------

func TestEvalIsRepeatable(t *testing.T) {
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush("x = 41\nx + 1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		value, err := b.Eval()
		if err != nil {
			t.Fatalf("eval %d: %v", i, err)
		}
		if n, _ := value.Number(); n != 42 {
			t.Errorf("eval %d = %v, want 42", i, value)
		}
	}
}

func TestEvalRecoversAfterException(t *testing.T) {
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush("f = \\x -> f x\nf ()"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Eval(); err == nil {
		t.Fatal("expected the first eval to fail")
	}
	// The image restore gives the next eval a full tank.
	if _, err := b.Eval(); err == nil {
		t.Fatal("expected the second eval to fail the same way")
	}
}

func TestSetBrushCompileError(t *testing.T) {
	b := NewBrush(DefaultLimits())
	err := b.SetBrush("1 +")
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("SetBrush err = %v, want *CompileError", err)
	}
	if len(compileErr.Diagnostics) == 0 {
		t.Error("expected diagnostics")
	}
	if b.Ready() {
		t.Error("brush must not be ready after a failed compile")
	}
	if _, err := b.Eval(); !errors.Is(err, ErrNoBrush) {
		t.Errorf("Eval err = %v, want ErrNoBrush", err)
	}
}

func TestSetBrushReplacesOldBrush(t *testing.T) {
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush("1"); err != nil {
		t.Fatal(err)
	}
	if err := b.SetBrush("2"); err != nil {
		t.Fatal(err)
	}
	value, err := b.Eval()
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := value.Number(); n != 2 {
		t.Errorf("eval = %v, want 2", value)
	}
}

func TestArtifactExport(t *testing.T) {
	b := NewBrush(DefaultLimits())
	if err := b.SetBrush("x = 1\nx"); err != nil {
		t.Fatal(err)
	}
	artifact, err := b.Artifact()
	if err != nil {
		t.Fatal(err)
	}
	if len(artifact.Chunk) == 0 {
		t.Error("artifact chunk is empty")
	}
	if len(artifact.Defs) != 1 || artifact.Defs[0] != "x" {
		t.Errorf("artifact defs = %v, want [x]", artifact.Defs)
	}
}
