// Package brush ties the language front end, the VM, and the renderer into
// the pipeline the wall server runs for every session: set a brush once,
// then evaluate and render it for each plotted point.
package brush

import (
	"errors"
	"strings"

	"github.com/rakugaki/rakugaki/haku"
	"github.com/rakugaki/rakugaki/render"
	"github.com/rakugaki/rakugaki/vm"
)

// ---------------------------------------------------------------------------
// Limits
// ---------------------------------------------------------------------------

// Limits gathers every resource cap a brush is subject to, front end and
// runtime alike. The zero value is not usable; start from DefaultLimits.
type Limits struct {
	MaxSourceLen           int `json:"maxSourceLen" toml:"max-source-len"`
	MaxChunks              int `json:"maxChunks" toml:"max-chunks"`
	MaxDefs                int `json:"maxDefs" toml:"max-defs"`
	MaxTokens              int `json:"maxTokens" toml:"max-tokens"`
	MaxParserEvents        int `json:"maxParserEvents" toml:"max-parser-events"`
	ASTCapacity            int `json:"astCapacity" toml:"ast-capacity"`
	ChunkCapacity          int `json:"chunkCapacity" toml:"chunk-capacity"`
	StackCapacity          int `json:"stackCapacity" toml:"stack-capacity"`
	CallStackCapacity      int `json:"callStackCapacity" toml:"call-stack-capacity"`
	RefCapacity            int `json:"refCapacity" toml:"ref-capacity"`
	Fuel                   int `json:"fuel" toml:"fuel"`
	Memory                 int `json:"memory" toml:"memory"`
	PixmapStackCapacity    int `json:"pixmapStackCapacity" toml:"pixmap-stack-capacity"`
	TransformStackCapacity int `json:"transformStackCapacity" toml:"transform-stack-capacity"`
}

// DefaultLimits returns caps generous enough for real painting brushes and
// tight enough to shrug off hostile ones.
func DefaultLimits() Limits {
	return Limits{
		MaxSourceLen:           65536,
		MaxChunks:              2,
		MaxDefs:                256,
		MaxTokens:              10240,
		MaxParserEvents:        10240,
		ASTCapacity:            10240,
		ChunkCapacity:          65536,
		StackCapacity:          1024,
		CallStackCapacity:      256,
		RefCapacity:            2048,
		Fuel:                   65536,
		Memory:                 1048576,
		PixmapStackCapacity:    4,
		TransformStackCapacity: 16,
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrNoBrush is returned when Eval runs before a brush compiled successfully.
var ErrNoBrush = errors.New("no brush is set")

// CompileError carries the diagnostics of a brush that failed to compile.
type CompileError struct {
	Diagnostics []haku.Diagnostic
}

func (e *CompileError) Error() string {
	messages := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		messages[i] = d.String()
	}
	return strings.Join(messages, "\n")
}

// ---------------------------------------------------------------------------
// Brush
// ---------------------------------------------------------------------------

// Brush is one session's compiled brush together with the VM that runs it.
// Not safe for concurrent use.
type Brush struct {
	limits     Limits
	machine    *vm.Vm
	defs       *haku.Defs
	chunks     []*haku.Chunk
	image      vm.Image
	localCount uint8
	ready      bool
}

// NewBrush creates an empty brush with the given limits.
func NewBrush(limits Limits) *Brush {
	return &Brush{
		limits: limits,
		machine: vm.NewVm(vm.Limits{
			StackCapacity:     limits.StackCapacity,
			CallStackCapacity: limits.CallStackCapacity,
			RefCapacity:       limits.RefCapacity,
			Fuel:              limits.Fuel,
			Memory:            limits.Memory,
		}),
	}
}

// Machine exposes the VM, mainly so results can be dereferenced.
func (b *Brush) Machine() *vm.Vm { return b.machine }

// Ready reports whether a brush compiled successfully.
func (b *Brush) Ready() bool { return b.ready }

// SetBrush compiles source into bytecode, resetting all previous state.
// If any stage produces diagnostics, the error is a *CompileError and the
// brush becomes unusable until a good one is set.
func (b *Brush) SetBrush(source string) error {
	b.ready = false

	code, err := haku.NewSourceCode(source, b.limits.MaxSourceLen)
	if err != nil {
		return err
	}

	tokens := haku.NewTokenStore(b.limits.MaxTokens)
	lexer := haku.NewLexer(code, tokens)
	_ = lexer.Lex() // the limit overflow also lands in the diagnostics

	parser := haku.NewParser(tokens, b.limits.MaxParserEvents)
	parser.ParseToplevel()
	ast := haku.NewAst(b.limits.ASTCapacity)
	root := parser.IntoAst(ast)

	defs := haku.NewDefs(b.limits.MaxDefs)
	chunk := haku.NewChunk(b.limits.ChunkCapacity)
	compiler := haku.NewCompiler(code, ast, defs, chunk)
	localCount := compiler.CompileToplevel(root)

	var diagnostics []haku.Diagnostic
	diagnostics = append(diagnostics, lexer.Diagnostics()...)
	diagnostics = append(diagnostics, parser.Diagnostics()...)
	diagnostics = append(diagnostics, compiler.Diagnostics()...)
	if len(diagnostics) > 0 {
		return &CompileError{Diagnostics: diagnostics}
	}

	b.defs = defs
	b.chunks = []*haku.Chunk{chunk}
	b.localCount = uint8(localCount)
	b.machine.Reset()
	b.machine.SetDefCount(defs.Len())
	b.image = b.machine.Image()
	b.ready = true
	return nil
}

// Eval runs the brush and returns the value it paints with. The VM is rolled
// back to a clean image first, so failed runs never leak into later ones.
func (b *Brush) Eval() (vm.Value, error) {
	if !b.ready {
		return vm.Value{}, ErrNoBrush
	}
	b.machine.RestoreImage(b.image)
	closureID, exc := b.machine.CreateRef(vm.Ref{Kind: vm.RefClosure, Closure: &vm.Closure{
		Start:      vm.BytecodeLoc{ChunkID: 0, Offset: 0},
		ParamCount: 1,
		LocalCount: b.localCount,
	}})
	if exc != nil {
		return vm.Value{}, exc
	}
	// The brush itself takes one (unused) argument.
	return b.machine.Run(b.chunks, closureID, vm.NilValue())
}

// RenderValue draws an evaluated value onto a pixmap, translated by
// (dx, dy). Rendering shares the fuel left over from Eval.
func (b *Brush) RenderValue(pixmap *render.Pixmap, value vm.Value, dx, dy float32) error {
	renderer := render.NewRenderer(pixmap, render.Limits{
		PixmapStackCapacity:    b.limits.PixmapStackCapacity,
		TransformStackCapacity: b.limits.TransformStackCapacity,
	})
	renderer.Translate(dx, dy)
	return renderer.RenderValue(b.machine, value)
}

// Artifact exports the compiled brush for storage or inspection.
func (b *Brush) Artifact() (*haku.Artifact, error) {
	if !b.ready {
		return nil, ErrNoBrush
	}
	defs := make([]string, b.defs.Len())
	for i := range defs {
		defs[i] = b.defs.Name(uint16(i))
	}
	return &haku.Artifact{
		Version:    haku.ArtifactVersion,
		Chunk:      b.chunks[0].Bytes,
		Defs:       defs,
		LocalCount: b.localCount,
	}, nil
}
