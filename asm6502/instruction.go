package asm6502

// evalOperand parses and evaluates text against the assembler's current
// symbol table and PC, honoring allowDefer. The parsed tree is always
// returned (even when resolved) so a caller that needs to enqueue a
// Fixup doesn't have to re-parse.
func (a *Assembler) evalOperand(text fstring, allowDefer bool) (val uint32, node *expr, deferred bool, err error) {
	node, err = parseExpression(text)
	if err != nil {
		return 0, nil, false, err
	}
	v, dep, err := node.eval(evalContext{pc: a.pc, symbols: a.symbols, allowDefer: allowDefer})
	if err != nil {
		return 0, nil, false, err
	}
	if dep != "" {
		collectIdentNames(node, a.forwardRefs)
		return 0, node, true, nil
	}
	return v, node, false, nil
}

func (a *Assembler) processInstruction(pl parsedLine) error {
	mnemonic := pl.mnemonic
	if !isKnownMnemonic(mnemonic) {
		return newError(UnknownMnemonic, pl.line, mnemonic, "unknown mnemonic")
	}

	op, err := classifyOperand(mnemonic, pl.operand)
	if err != nil {
		return err
	}

	instrPC := a.pc

	switch {
	case !op.needsWidth && (op.mode == Implied || op.mode == Accumulator):
		mode := op.mode
		opcode, ok := lookupOpcode(mnemonic, mode)
		if !ok && mode == Implied {
			// An empty operand is a synonym for "A" on ASL/LSR/ROL/ROR.
			mode = Accumulator
			opcode, ok = lookupOpcode(mnemonic, mode)
		}
		if !ok {
			return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support %s addressing", op.mode)
		}
		offset := a.appendBytes(opcode)
		a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: 1, line: pl.line,
			label: pl.label, tag: mnemonic, mode: mode, operand: pl.operand.str, source: pl.source.str})
		return nil

	case op.mode == Relative:
		opcode, ok := lookupOpcode(mnemonic, Relative)
		if !ok {
			return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support relative addressing")
		}
		node, err := parseExpression(op.exprText)
		if err != nil {
			return err
		}
		offset := a.appendBytes(opcode, 0)
		a.fixups = append(a.fixups, fixup{
			offset: offset + 1, width: 1, kind: fixRelative8,
			e: node, pc: instrPC, line: pl.line, mnemonic: mnemonic,
		})
		a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: 2, line: pl.line,
			label: pl.label, tag: mnemonic, mode: Relative, operand: pl.operand.str, source: pl.source.str})
		return nil

	case op.mode == Immediate:
		val, node, deferred, err := a.evalOperand(op.exprText, true)
		if err != nil {
			return err
		}
		opcode, ok := lookupOpcode(mnemonic, Immediate)
		if !ok {
			return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support immediate addressing")
		}
		var offset int
		if !deferred {
			offset = a.appendBytes(opcode, byte(val))
		} else {
			offset = a.appendBytes(opcode, 0)
			a.fixups = append(a.fixups, fixup{
				offset: offset + 1, width: 1, kind: immediateFixupKind(node),
				e: node, pc: instrPC, line: pl.line,
			})
		}
		a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: 2, line: pl.line,
			label: pl.label, tag: mnemonic, mode: Immediate, operand: pl.operand.str, source: pl.source.str})
		return nil

	case op.mode == Indirect:
		return a.emitWidthFixed(mnemonic, Indirect, op, instrPC, pl, 2, fixAbsolute16)

	case op.mode == IndirectX:
		return a.emitWidthFixed(mnemonic, IndirectX, op, instrPC, pl, 1, fixZeroPage8)

	case op.mode == IndirectY:
		return a.emitWidthFixed(mnemonic, IndirectY, op, instrPC, pl, 1, fixZeroPage8)

	case op.mode == Absolute && !op.needsWidth:
		// JMP/JSR: always absolute, never zero-page.
		return a.emitWidthFixed(mnemonic, Absolute, op, instrPC, pl, 2, fixAbsolute16)

	case op.needsWidth:
		return a.emitWidthChosen(mnemonic, op, instrPC, pl)
	}

	return newError(InvalidAddressingMode, pl.line, mnemonic, "unsupported operand")
}

// immediateFixupKind tags a deferred Immediate operand by the unary
// byte-extraction operator at its root, when present, so low-byte and
// high-byte patches mask the same way they do when resolved immediately.
// Plain deferred immediates get their own fixImmediate8 kind, distinct
// from fixByte8Data (.byte/DCB data, which must RangeError on overflow):
// an Immediate operand is always masked to 8 bits, never rejected.
func immediateFixupKind(e *expr) fixupKind {
	if e.kind == exprUnary {
		switch e.op {
		case '<':
			return fixLowByte
		case '>':
			return fixHighByte
		}
	}
	return fixImmediate8
}

// emitWidthFixed handles addressing modes whose width never depends on
// the operand value: Indirect, IndirectX, IndirectY, and the JMP/JSR
// absolute form.
func (a *Assembler) emitWidthFixed(mnemonic string, mode Mode, op operand, instrPC uint32, pl parsedLine, width int, kind fixupKind) error {
	opcode, ok := lookupOpcode(mnemonic, mode)
	if !ok {
		return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support %s addressing", mode)
	}
	val, node, deferred, err := a.evalOperand(op.exprText, true)
	if err != nil {
		return err
	}
	var offset int
	if !deferred {
		b := toBytes(val, width)
		offset = a.appendBytes(append([]byte{opcode}, b...)...)
	} else {
		placeholder := make([]byte, width+1)
		placeholder[0] = opcode
		offset = a.appendBytes(placeholder...)
		a.fixups = append(a.fixups, fixup{offset: offset + 1, width: width, kind: kind, e: node, pc: instrPC, line: pl.line})
	}
	a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: width + 1, line: pl.line,
		label: pl.label, tag: mnemonic, mode: mode, operand: pl.operand.str, source: pl.source.str})
	return nil
}

// emitWidthChosen handles the ZeroPage/Absolute family, where the mode
// depends on the operand's value unless a force prefix pins it.
//
// When the operand is a forward reference (still unresolved), there is
// no value yet to decide zero-page vs. absolute. This assembler treats
// that case the way a "<" force would: zero page only when forced, and
// absolute otherwise. A forward-referenced label is assumed not to sit
// in zero page unless the source says so explicitly.
func (a *Assembler) emitWidthChosen(mnemonic string, op operand, instrPC uint32, pl parsedLine) error {
	val, node, deferred, err := a.evalOperand(op.exprText, true)
	if err != nil {
		return err
	}

	if !deferred {
		mode := op.resolvedMode(mnemonic, val)
		opcode, ok := lookupOpcode(mnemonic, mode)
		if !ok {
			return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support %s addressing", mode)
		}
		width := mode.operandBytes()
		b := toBytes(val, width)
		offset := a.appendBytes(append([]byte{opcode}, b...)...)
		a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: width + 1, line: pl.line,
			label: pl.label, tag: mnemonic, mode: mode, operand: pl.operand.str, source: pl.source.str})
		return nil
	}

	mode := op.deferredMode()
	opcode, ok := lookupOpcode(mnemonic, mode)
	if !ok {
		return newError(InvalidAddressingMode, pl.line, mnemonic, "mnemonic does not support %s addressing", mode)
	}
	width := mode.operandBytes()
	kind := fixAbsolute16
	if width == 1 {
		kind = fixZeroPage8
	}
	placeholder := make([]byte, width+1)
	placeholder[0] = opcode
	offset := a.appendBytes(placeholder...)
	a.fixups = append(a.fixups, fixup{offset: offset + 1, width: width, kind: kind, e: node, pc: instrPC, line: pl.line})
	a.recordItem(itemBuild{kind: ItemInstruction, bufOffset: offset, length: width + 1, line: pl.line,
		label: pl.label, tag: mnemonic, mode: mode, operand: pl.operand.str, source: pl.source.str})
	return nil
}

// deferredMode picks the width to commit to for a forward-referenced
// operand, before its value is known: forced zero-page when "<" was
// given, absolute otherwise (see emitWidthChosen's doc comment).
func (o operand) deferredMode() Mode {
	if o.forceZero {
		switch o.index {
		case 'X':
			return ZeroPageX
		case 'Y':
			return ZeroPageY
		default:
			return ZeroPage
		}
	}
	switch o.index {
	case 'X':
		return AbsoluteX
	case 'Y':
		return AbsoluteY
	default:
		return Absolute
	}
}
