package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/term"

	"github.com/nilclass/sixtwoasm/asm6502"
)

// repl drives an interactive command loop over an Assembler, in the
// shape of the teacher's debugger host: a persistent command tree, a
// buffered input/output pair, and a set of bound command handlers.
type repl struct {
	tree        *cmd.Tree
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	asm         *asm6502.Assembler
	lastItems   []asm6502.Item
	verbose     bool
}

func newRepl(verbose bool) *repl {
	a := asm6502.NewAssembler()
	a.Verbose = verbose
	a.Output = os.Stderr
	return &repl{
		tree:    commandTree(),
		asm:     a,
		verbose: verbose,
	}
}

// run reads commands from r until EOF or a command returns an error
// (quit does exactly that). When interactive, it prints a banner sized
// to the width of stdout's terminal (80 columns when stdout is not a
// terminal) and shows a prompt before each command.
func (r *repl) run(in io.Reader, out io.Writer, interactive bool) {
	r.input = bufio.NewScanner(in)
	r.output = bufio.NewWriter(out)
	r.interactive = interactive

	if interactive {
		r.println(strings.Repeat("-", terminalWidth()))
		r.println("sixtwoasm — type 'help' for a command list")
		r.println(strings.Repeat("-", terminalWidth()))
	}

	for {
		r.prompt()

		line, err := r.getLine()
		if err != nil {
			break
		}
		if line == "" {
			continue
		}

		sel, err := r.tree.Lookup(line)
		switch {
		case err == cmd.ErrNotFound:
			r.println("Command not found.")
			continue
		case err == cmd.ErrAmbiguous:
			r.println("Command is ambiguous.")
			continue
		case err != nil:
			r.printf("ERROR: %v\n", err)
			continue
		}

		handler := sel.Command.Data.(func(*repl, cmd.Selection) error)
		if err := handler(r, sel); err != nil {
			break
		}
	}
}

func (r *repl) getLine() (string, error) {
	if r.input.Scan() {
		return r.input.Text(), nil
	}
	if r.input.Err() != nil {
		return "", r.input.Err()
	}
	return "", io.EOF
}

func (r *repl) prompt() {
	if !r.interactive {
		return
	}
	r.printf("sixtwoasm [$%04X]> ", r.asm.Origin())
	r.flush()
}

func (r *repl) print(args ...any)            { fmt.Fprint(r.output, args...) }
func (r *repl) printf(format string, a ...any) { fmt.Fprintf(r.output, format, a...); r.flush() }
func (r *repl) println(args ...any)          { fmt.Fprintln(r.output, args...); r.flush() }
func (r *repl) flush()                       { r.output.Flush() }

// terminalWidth reports the host terminal's column count, falling back
// to a conservative default when stdout isn't a real terminal.
func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// includeReader returns a ReadInclude collaborator that resolves
// .incbin paths relative to dir, the directory of the source file
// being assembled.
func includeReader(dir string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return os.ReadFile(path)
	}
}
