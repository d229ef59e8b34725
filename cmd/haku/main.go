// haku CLI - compile and run brushes outside the server
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/rakugaki/rakugaki/brush"
	"github.com/rakugaki/rakugaki/haku"
	"github.com/rakugaki/rakugaki/render"
	"github.com/rakugaki/rakugaki/vm"
)

func main() {
	dumpPath := flag.String("dump", "", "Write the compiled artifact (CBOR) to this file")
	renderPath := flag.String("render", "", "Render the brush to this PNG file")
	size := flag.Int("size", 168, "Canvas size for -render, in pixels")
	fuel := flag.Int("fuel", 0, "Override the fuel limit (0 keeps the default)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: haku [options] <brush file>\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a brush, evaluates it once, and prints the result.\n")
		fmt.Fprintf(os.Stderr, "Pass - to read the brush from stdin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  haku brush.haku                   # Compile and evaluate\n")
		fmt.Fprintf(os.Stderr, "  haku -render out.png brush.haku   # Paint one dab onto a canvas\n")
		fmt.Fprintf(os.Stderr, "  haku -dump brush.cbor brush.haku  # Export the bytecode artifact\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	source, err := readSource(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	limits := brush.DefaultLimits()
	if *fuel > 0 {
		limits.Fuel = *fuel
	}

	b := brush.NewBrush(limits)
	if err := b.SetBrush(source); err != nil {
		var compileErr *brush.CompileError
		if errors.As(err, &compileErr) {
			printDiagnostics(flag.Arg(0), source, compileErr.Diagnostics)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *dumpPath != "" {
		if err := dumpArtifact(b, *dumpPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	value, err := b.Eval()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)

	if *renderPath != "" {
		if err := renderValue(b, value, *renderPath, *size); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func readSource(path string) (string, error) {
	if path == "-" {
		data, err := os.ReadFile("/dev/stdin")
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// printDiagnostics reports each diagnostic as file:line:column: message.
func printDiagnostics(path, source string, diagnostics []haku.Diagnostic) {
	for _, d := range diagnostics {
		line, column := position(source, d.Span.Start)
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", path, line, column, d.Message)
	}
}

func position(source string, offset uint32) (line, column int) {
	at := min(int(offset), len(source))
	before := source[:at]
	line = strings.Count(before, "\n") + 1
	column = at - strings.LastIndex(before, "\n")
	return line, column
}

func dumpArtifact(b *brush.Brush, path string) error {
	artifact, err := b.Artifact()
	if err != nil {
		return err
	}
	data, err := haku.EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// renderValue paints a single dab in the middle of a fresh canvas.
func renderValue(b *brush.Brush, value vm.Value, path string, size int) error {
	pixmap := render.NewPixmap(size, size)
	center := float32(size) / 2
	if err := b.RenderValue(pixmap, value, center, center); err != nil {
		return err
	}

	img := &image.NRGBA{
		Pix:    pixmap.Data(),
		Stride: size * 4,
		Rect:   image.Rect(0, 0, size, size),
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}
