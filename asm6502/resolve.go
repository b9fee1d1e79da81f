package asm6502

// resolveBranches patches every Relative8 fixup, expanding any branch
// whose target falls outside signed-8-bit range into an inverted short
// branch over an inserted JMP, per spec.md section 4.7. Expansion
// shifts every later Fixup offset and pc, every later recorded Item's
// buffer offset, and every label address above branch_pc+2 by the same
// amount, so it can cascade. The inserted JMP's own target address is
// never baked in at expansion time — a branch expanding early in the
// sweep has no way to know how much a sibling branch expanding *later*
// will still shift its target by. Instead it is queued as an ordinary
// fixAbsolute16 Fixup, left for resolveRemaining to patch once every
// expansion (and therefore every symbol shift) has already happened. A
// not-yet-expanded fixup's displacement is itself recomputed from
// scratch on every sweep rather than cached, since an earlier sweep's
// expansion may have shifted either its own instruction address or its
// target label out from under a previously-in-range result; only an
// already-expanded fixup (its displacement byte permanently fixed to 3,
// skipping over the inserted JMP) is skipped on later sweeps. The outer
// loop repeats until a full pass expands nothing, bounded by a
// convergence guard.
func (a *Assembler) resolveBranches() error {
	branchCount := 0
	for _, fx := range a.fixups {
		if fx.kind == fixRelative8 {
			branchCount++
		}
	}
	guard := branchCount + 2

	for {
		expandedAny := false

		for i := range a.fixups {
			fx := &a.fixups[i]
			if fx.kind != fixRelative8 || fx.expanded {
				continue
			}

			target, dep, err := fx.e.eval(evalContext{pc: fx.pc, symbols: a.symbols, allowDefer: false})
			if err != nil {
				return err
			}
			if dep != "" {
				return newError(UndefinedSymbol, fx.line, dep, "undefined symbol")
			}

			delta := int64(target) - int64(fx.pc) - 2
			if delta >= -128 && delta <= 127 {
				a.buf[fx.offset] = byte(int8(delta))
				continue
			}

			if target > 0xFFFF {
				return newError(BranchUnreachable, fx.line, "", "branch target $%X outside 16-bit address space", target)
			}

			inverse, ok := branchInverse[fx.mnemonic]
			if !ok {
				return newError(InvalidAddressingMode, fx.line, fx.mnemonic, "mnemonic has no relative form to expand")
			}
			invOpcode, _ := lookupOpcode(inverse, Relative)
			jmpOpcode, _ := lookupOpcode("JMP", Absolute)

			branchOpcodeOffset := fx.offset - 1
			branchInstrPC := fx.pc
			targetExpr := fx.e
			fxLine := fx.line
			a.buf[branchOpcodeOffset] = invOpcode
			a.buf[fx.offset] = 3

			branchItemIdx := -1
			for bi := range a.itemsBuild {
				if a.itemsBuild[bi].kind == ItemInstruction && a.itemsBuild[bi].bufOffset == branchOpcodeOffset {
					branchItemIdx = bi
					break
				}
			}

			insertPos := fx.offset + 1
			grown := make([]byte, 0, len(a.buf)+3)
			grown = append(grown, a.buf[:insertPos]...)
			grown = append(grown, jmpOpcode, 0, 0)
			grown = append(grown, a.buf[insertPos:]...)
			a.buf = grown

			a.shiftAfter(insertPos, 3, branchInstrPC)

			// The JMP's own target bytes are never baked in here: a sibling
			// branch expanding later in this same sweep (or a later sweep)
			// would shift the same target label again, after these bytes
			// were already committed. Queue it as an ordinary fixAbsolute16
			// fixup instead, reusing the branch's own target expression, so
			// it gets patched once by resolveRemaining against the final,
			// fully-shifted symbol table.
			a.fixups = append(a.fixups, fixup{
				offset: insertPos + 1, width: 2, kind: fixAbsolute16,
				e: targetExpr, pc: branchInstrPC, line: fxLine,
			})
			a.fixups[i].expanded = true
			expandedAny = true

			// The inserted JMP has no source line of its own; give it a
			// synthetic Item (empty Source) so a listing accounts for
			// every byte in the buffer instead of silently skipping it.
			if branchItemIdx >= 0 {
				synthetic := itemBuild{
					kind: ItemInstruction, bufOffset: insertPos, length: 3,
					line: a.itemsBuild[branchItemIdx].line, tag: "JMP", mode: Absolute,
				}
				tail := append([]itemBuild{}, a.itemsBuild[branchItemIdx+1:]...)
				a.itemsBuild = append(a.itemsBuild[:branchItemIdx+1], synthetic)
				a.itemsBuild = append(a.itemsBuild, tail...)
			}
		}

		if !expandedAny {
			return nil
		}
		guard--
		if guard < 0 {
			return newError(BranchUnreachable, 0, "", "branch expansion did not converge")
		}
	}
}

// shiftAfter accounts for delta bytes inserted at insertPos: every
// Fixup's buffer offset at or past that point moves forward by delta,
// and so does the producing instruction's own pc when that instruction
// itself sits past the insertion (so a later fixup's own branch_pc
// stays accurate for its next eval). Recorded Items shift the same way,
// and every label whose address is strictly greater than branchPC+2
// moves forward by delta too (constants are values, not addresses, and
// never shift).
func (a *Assembler) shiftAfter(insertPos int, delta int, branchPC uint32) {
	threshold := branchPC + 2
	for i := range a.fixups {
		if a.fixups[i].offset >= insertPos {
			a.fixups[i].offset += delta
		}
		if a.fixups[i].pc >= threshold {
			a.fixups[i].pc += uint32(delta)
		}
	}
	for i := range a.itemsBuild {
		if a.itemsBuild[i].bufOffset >= insertPos {
			a.itemsBuild[i].bufOffset += delta
		}
	}
	a.symbols.shiftAbove(threshold, uint32(delta))
}

// resolveRemaining patches every non-branch Fixup (ZeroPage8,
// Absolute16, Word16Data, Byte8Data, Immediate8, LowByte, HighByte)
// against the complete, post-expansion symbol table and buffer offsets.
// This includes the Absolute16 fixups that resolveBranches queued for
// each expanded branch's inserted JMP target, so every such target is
// written exactly once, after every expansion (and therefore every
// symbol shift) is already done.
func (a *Assembler) resolveRemaining() error {
	for i := range a.fixups {
		fx := &a.fixups[i]
		if fx.kind == fixRelative8 {
			continue
		}

		val, dep, err := fx.e.eval(evalContext{pc: fx.pc, symbols: a.symbols, allowDefer: false})
		if err != nil {
			return err
		}
		if dep != "" {
			return newError(UndefinedSymbol, fx.line, dep, "undefined symbol")
		}

		switch fx.kind {
		case fixZeroPage8, fixByte8Data:
			if val > 0xFF {
				return newError(RangeError, fx.line, "", "value %#x does not fit in a byte", val)
			}
			a.buf[fx.offset] = byte(val)
		case fixImmediate8:
			a.buf[fx.offset] = byte(val)
		case fixAbsolute16, fixWord16Data:
			b := toBytes(val, 2)
			a.buf[fx.offset] = b[0]
			a.buf[fx.offset+1] = b[1]
		case fixLowByte, fixHighByte:
			// The root '<' or '>' of e has already extracted the byte.
			a.buf[fx.offset] = byte(val & 0xFF)
		}
	}
	return nil
}
