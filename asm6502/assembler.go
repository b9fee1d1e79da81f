package asm6502

import (
	"fmt"
	"io"
	"strings"
)

// defaultOrigin is the PC an Assembler starts at when the source never
// issues its own "*=" directive and the caller never calls SetOrigin.
const defaultOrigin uint32 = 0x0800

// itemBuild is the in-progress counterpart of Item: it tracks a byte
// range in the output buffer by offset rather than by final address, so
// it can be shifted the same way Fixups are when a branch expands.
type itemBuild struct {
	kind      ItemKind
	bufOffset int
	length    int
	line      int
	label     string
	tag       string
	mode      Mode
	operand   string
	source    string
}

// Assembler turns 6502 source text into a byte buffer, a symbol table,
// and (on request) an ordered Item stream. It holds no file handles and
// performs no disk I/O of its own; .incbin delegates to ReadInclude,
// an injected collaborator, exactly as an external caller would supply
// file contents to any other pure-computation component.
type Assembler struct {
	Verbose      bool
	Output       io.Writer
	ReadInclude  func(path string) ([]byte, error)

	configuredOrigin uint32

	pc               uint32
	bufOrigin        uint32
	originDirectiveSeen bool
	buf              []byte
	symbols          *symbolTable
	fixups           []fixup
	itemsBuild       []itemBuild
	forwardRefs      map[string]bool
}

// NewAssembler returns an Assembler with the default origin ($0800) and
// no include reader configured.
func NewAssembler() *Assembler {
	return &Assembler{configuredOrigin: defaultOrigin}
}

// AddrMapEntry associates one output-buffer offset with the CPU address
// the byte at that offset occupies.
type AddrMapEntry struct {
	Offset  int
	Address uint32
}

func (a *Assembler) log(format string, args ...any) {
	if a.Verbose && a.Output != nil {
		fmt.Fprintf(a.Output, format+"\n", args...)
	}
}

// SetOrigin configures the PC the next Assemble call starts at, absent
// an earlier "*=" directive in the source.
func (a *Assembler) SetOrigin(addr uint32) {
	a.configuredOrigin = addr
}

// Origin reports the currently configured starting PC.
func (a *Assembler) Origin() uint32 {
	return a.configuredOrigin
}

// Reset clears all assembled state and restores the default origin.
func (a *Assembler) Reset() {
	a.configuredOrigin = defaultOrigin
	a.clearState()
}

func (a *Assembler) clearState() {
	a.pc = 0
	a.bufOrigin = 0
	a.originDirectiveSeen = false
	a.buf = nil
	a.symbols = newSymbolTable()
	a.fixups = nil
	a.itemsBuild = nil
	a.forwardRefs = make(map[string]bool)
}

// Symbols returns every defined symbol from the most recent assemble
// call, in definition order.
func (a *Assembler) Symbols() []Symbol {
	if a.symbols == nil {
		return nil
	}
	return a.symbols.all()
}

// Lookup reports the value of a previously assembled symbol.
func (a *Assembler) Lookup(name string) (uint32, bool) {
	if a.symbols == nil {
		return 0, false
	}
	return a.symbols.lookup(name)
}

// AssembleBytes assembles source and returns the output buffer alone.
func (a *Assembler) AssembleBytes(source string) ([]byte, error) {
	if err := a.assemble(source); err != nil {
		return nil, err
	}
	return a.buf, nil
}

// AssembleWithSymbols assembles source and also returns the final
// symbol table.
func (a *Assembler) AssembleWithSymbols(source string) ([]byte, []Symbol, error) {
	if err := a.assemble(source); err != nil {
		return nil, nil, err
	}
	return a.buf, a.symbols.all(), nil
}

// AssembleFull assembles source and also returns the ordered Item
// stream for an external listing formatter.
func (a *Assembler) AssembleFull(source string) ([]byte, []Item, error) {
	if err := a.assemble(source); err != nil {
		return nil, nil, err
	}
	return a.buf, a.finalizeItems(), nil
}

// AssembleWithAddrMap assembles source and also returns a per-byte
// output-offset-to-address map.
func (a *Assembler) AssembleWithAddrMap(source string) ([]byte, []AddrMapEntry, error) {
	if err := a.assemble(source); err != nil {
		return nil, nil, err
	}
	return a.buf, a.buildAddrMap(), nil
}

func (a *Assembler) buildAddrMap() []AddrMapEntry {
	m := make([]AddrMapEntry, len(a.buf))
	for i := range a.buf {
		m[i] = AddrMapEntry{Offset: i, Address: a.bufOrigin + uint32(i)}
	}
	return m
}

func (a *Assembler) finalizeItems() []Item {
	items := make([]Item, 0, len(a.itemsBuild))
	for _, ib := range a.itemsBuild {
		items = append(items, Item{
			Kind:    ib.kind,
			Address: a.bufOrigin + uint32(ib.bufOffset),
			Line:    ib.line,
			Label:   ib.label,
			Tag:     ib.tag,
			Mode:    ib.mode,
			Operand: ib.operand,
			Bytes:   append([]byte(nil), a.buf[ib.bufOffset:ib.bufOffset+ib.length]...),
			Source:  ib.source,
		})
	}
	return items
}

// WriteBin writes b to w verbatim, as a raw headerless machine-code dump.
func WriteBin(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// assemble runs the whole pipeline: first pass (line walk, immediate
// emission, fixup enqueueing), then fixup resolution with relative-
// branch expansion to a fixed point.
func (a *Assembler) assemble(source string) error {
	a.clearState()
	a.pc = a.configuredOrigin
	a.bufOrigin = a.configuredOrigin

	lines := strings.Split(source, "\n")
	for i, text := range lines {
		raw := newFstring(i+1, text)
		pl, err := parseLine(raw)
		if err != nil {
			return err
		}
		if err := a.processLine(pl); err != nil {
			return err
		}
	}

	if err := a.resolveBranches(); err != nil {
		return err
	}
	if err := a.resolveRemaining(); err != nil {
		return err
	}

	a.log("assembled %d bytes at origin $%04X", len(a.buf), a.bufOrigin)
	return nil
}

func (a *Assembler) processLine(pl parsedLine) error {
	switch pl.kind {
	case lineBlank:
		return nil

	case lineLabelOnly:
		if err := a.defineLabel(pl.label, pl.line); err != nil {
			return err
		}
		a.recordItem(itemBuild{kind: ItemLabel, bufOffset: len(a.buf), line: pl.line,
			label: pl.label, source: pl.source.str})
		return nil

	case lineConstant:
		if pl.label != "" {
			if err := a.defineLabel(pl.label, pl.line); err != nil {
				return err
			}
		}
		node, err := parseExpression(pl.exprText)
		if err != nil {
			return err
		}
		val, dep, err := node.eval(evalContext{pc: a.pc, symbols: a.symbols, allowDefer: false})
		if err != nil {
			return err
		}
		if dep != "" {
			return newError(UndefinedSymbol, pl.line, dep, "constants cannot be forward-referenced")
		}
		if a.forwardRefs[pl.name] {
			return newError(UndefinedSymbol, pl.line, pl.name, "constants cannot be forward-referenced")
		}
		return a.symbols.define(pl.name, KindConstant, val, pl.line)

	case lineOrigin:
		if pl.label != "" {
			if err := a.defineLabel(pl.label, pl.line); err != nil {
				return err
			}
		}
		node, err := parseExpression(pl.exprText)
		if err != nil {
			return err
		}
		val, dep, err := node.eval(evalContext{pc: a.pc, symbols: a.symbols, allowDefer: false})
		if err != nil {
			return err
		}
		if dep != "" {
			return newError(UndefinedSymbol, pl.line, dep, "origin expression cannot be forward-referenced")
		}
		return a.processOrigin(val, pl.line)

	case lineDirective:
		if pl.label != "" {
			if err := a.defineLabel(pl.label, pl.line); err != nil {
				return err
			}
		}
		return a.processDirective(pl)

	case lineInstruction:
		if pl.label != "" {
			if err := a.defineLabel(pl.label, pl.line); err != nil {
				return err
			}
		}
		return a.processInstruction(pl)
	}
	return nil
}

func (a *Assembler) defineLabel(name string, line int) error {
	return a.symbols.define(name, KindLabel, a.pc, line)
}

func (a *Assembler) processOrigin(newPC uint32, line int) error {
	if !a.originDirectiveSeen {
		a.originDirectiveSeen = true
		if len(a.buf) == 0 {
			a.bufOrigin = newPC
			a.pc = newPC
			return nil
		}
	}
	if newPC < a.pc {
		return newError(BackwardOrigin, line, "", "origin $%04X is behind current PC $%04X", newPC, a.pc)
	}
	pad := int(newPC - a.pc)
	a.buf = append(a.buf, make([]byte, pad)...)
	a.pc = newPC
	return nil
}

// appendBytes emits b at the current PC and advances it, returning the
// buffer offset the bytes were written at.
func (a *Assembler) appendBytes(b ...byte) int {
	offset := len(a.buf)
	a.buf = append(a.buf, b...)
	a.pc += uint32(len(b))
	return offset
}

func (a *Assembler) recordItem(ib itemBuild) {
	a.itemsBuild = append(a.itemsBuild, ib)
}
