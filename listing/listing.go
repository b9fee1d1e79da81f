// Package listing renders an assembler's ordered Item stream as a
// human-readable source listing: one line per label, directive, or
// instruction, with its address and emitted bytes. It is deliberately
// kept outside asm6502 so the core package never touches a terminal.
package listing

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/term"

	"github.com/nilclass/sixtwoasm/asm6502"
)

// operandFormat renders an instruction's operand text for each
// addressing mode, mirroring the teacher disassembler's format table.
var operandFormat = map[asm6502.Mode]string{
	asm6502.Implied:     "%s",
	asm6502.Accumulator: "A",
	asm6502.Immediate:   "#%s",
	asm6502.ZeroPage:    "$%s",
	asm6502.ZeroPageX:   "$%s,X",
	asm6502.ZeroPageY:   "$%s,Y",
	asm6502.Absolute:    "$%s",
	asm6502.AbsoluteX:   "$%s,X",
	asm6502.AbsoluteY:   "$%s,Y",
	asm6502.Indirect:    "($%s)",
	asm6502.IndirectX:   "($%s,X)",
	asm6502.IndirectY:   "($%s),Y",
	asm6502.Relative:    "$%s",
}

var hexDigits = "0123456789ABCDEF"

func hexString(b []byte) string {
	buf := make([]byte, len(b)*2)
	j := len(buf) - 1
	for _, n := range b {
		buf[j] = hexDigits[n&0xF]
		buf[j-1] = hexDigits[n>>4]
		j -= 2
	}
	return string(buf)
}

// Formatter writes a listing to an underlying writer, colorizing the
// address/byte columns when the destination is a real terminal.
type Formatter struct {
	w       io.Writer
	colored bool
}

// NewFormatter wraps w for listing output. When w is an *os.File
// connected to a terminal (per beevik/term), the address and byte
// columns are colorized with ANSI escapes.
func NewFormatter(w io.Writer) *Formatter {
	f, ok := w.(*os.File)
	if !ok {
		return &Formatter{w: w}
	}
	if !term.IsTerminal(int(f.Fd())) {
		return &Formatter{w: w}
	}
	return &Formatter{w: f, colored: true}
}

const (
	colorAddr   = "\x1b[36m"
	colorBytes  = "\x1b[90m"
	colorReset  = "\x1b[0m"
)

func (f *Formatter) paint(code, s string) string {
	if !f.colored {
		return s
	}
	return code + s + colorReset
}

// WriteItems renders each Item as one listing line:
//
//	ADDR  BYTES...            SOURCE
func (f *Formatter) WriteItems(items []asm6502.Item) error {
	for _, it := range items {
		addr := f.paint(colorAddr, fmt.Sprintf("%04X", it.Address))
		bytes := f.paint(colorBytes, padBytes(hexString(it.Bytes), 8))
		text := sourceText(it)
		if _, err := fmt.Fprintf(f.w, "%s  %s  %s\n", addr, bytes, text); err != nil {
			return err
		}
	}
	return nil
}

func padBytes(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func sourceText(it asm6502.Item) string {
	switch it.Kind {
	case asm6502.ItemLabel:
		return it.Label + ":"
	case asm6502.ItemDirective:
		return it.Tag + " " + it.Operand
	case asm6502.ItemInstruction:
		format, ok := operandFormat[it.Mode]
		if !ok {
			format = "%s"
		}
		operandHex := ""
		switch it.Mode {
		case asm6502.Relative, asm6502.Absolute, asm6502.AbsoluteX, asm6502.AbsoluteY,
			asm6502.Indirect, asm6502.IndirectX, asm6502.IndirectY,
			asm6502.ZeroPage, asm6502.ZeroPageX, asm6502.ZeroPageY, asm6502.Immediate:
			if len(it.Bytes) > 1 {
				operandHex = hexString(it.Bytes[1:])
			}
		}
		operand := fmt.Sprintf(format, operandHex)
		if it.Mode == asm6502.Implied || it.Mode == asm6502.Accumulator {
			operand = ""
		}
		if it.Label != "" {
			return fmt.Sprintf("%s: %s %s", it.Label, it.Tag, operand)
		}
		return strings.TrimSpace(it.Tag + " " + operand)
	}
	return ""
}
