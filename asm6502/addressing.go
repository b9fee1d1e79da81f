package asm6502

// operand is the result of classifying an instruction's operand text,
// per spec.md section 4.6. Some mnemonics resolve to a concrete mode
// right away (Implied, Accumulator, Immediate, the indirect family,
// Relative, and the JMP/JSR absolute form); others only narrow down to
// "zero-page or absolute, indexed or not" until the expression value
// (and any force prefix) is known.
type operand struct {
	mode      Mode // meaningful directly unless needsWidth is set
	needsWidth bool
	forceZero bool
	forceAbs  bool
	index     byte // 0, 'X', or 'Y'
	exprText  fstring
}

// resolvedMode picks ZeroPage/ZeroPageX/ZeroPageY vs Absolute/AbsoluteX/
// AbsoluteY once the operand value is known, honoring force prefixes.
func (o operand) resolvedMode(mnemonic string, value uint32) Mode {
	useZero := o.forceZero || (!o.forceAbs && value <= 0xFF && hasZeroPageForm(mnemonic, o.index))
	switch o.index {
	case 'X':
		if useZero {
			return ZeroPageX
		}
		return AbsoluteX
	case 'Y':
		if useZero {
			return ZeroPageY
		}
		return AbsoluteY
	default:
		if useZero {
			return ZeroPage
		}
		return Absolute
	}
}

func hasZeroPageForm(mnemonic string, index byte) bool {
	switch index {
	case 'X':
		return hasMode(mnemonic, ZeroPageX)
	case 'Y':
		return hasMode(mnemonic, ZeroPageY)
	default:
		return hasMode(mnemonic, ZeroPage)
	}
}

// classifyOperand determines the addressing mode shape of operand text
// already stripped of comments and outer whitespace.
func classifyOperand(mnemonic string, text fstring) (operand, error) {
	t := text.trim()

	if t.isEmpty() {
		return operand{mode: Implied}, nil
	}

	if len(t.str) == 1 && (t.str[0] == 'A' || t.str[0] == 'a') && hasMode(mnemonic, Accumulator) {
		return operand{mode: Accumulator}, nil
	}

	if t.startsWithChar('#') {
		return operand{mode: Immediate, exprText: t.consume(1)}, nil
	}

	if t.startsWithChar('(') {
		return classifyIndirect(t)
	}

	if isBranchMnemonic(mnemonic) {
		return operand{mode: Relative, exprText: t}, nil
	}

	idxText, index := stripIndexSuffix(t)

	if mnemonic == "JMP" || mnemonic == "JSR" {
		return operand{mode: Absolute, exprText: idxText}, nil
	}

	forceZero, forceAbs, rest := stripForcePrefix(idxText)

	return operand{
		needsWidth: true,
		forceZero:  forceZero,
		forceAbs:   forceAbs,
		index:      index,
		exprText:   rest,
	}, nil
}

// classifyIndirect handles operand text beginning with '(': "(e)",
// "(e,X)", and "(e),Y".
func classifyIndirect(t fstring) (operand, error) {
	str := t.str
	close := -1
	depth := 0
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				close = i
			}
		}
		if close >= 0 {
			break
		}
	}
	if close < 0 {
		return operand{}, newError(MalformedOperand, t.row, t.str, "unbalanced parentheses in operand")
	}

	inner := t.consume(1).trunc(close - 1)
	after := t.consume(close + 1)

	if after.isEmpty() {
		// "(e)" or "(e,X)"
		if endsWithIndexChar(inner, 'X') {
			return operand{mode: IndirectX, exprText: trimTrailingIndex(inner)}, nil
		}
		return operand{mode: Indirect, exprText: inner}, nil
	}

	if after.startsWithChar(',') && len(after.str) == 2 &&
		(after.str[1] == 'Y' || after.str[1] == 'y') {
		return operand{mode: IndirectY, exprText: inner}, nil
	}

	return operand{}, newError(MalformedOperand, t.row, t.str, "malformed indirect operand")
}

func endsWithIndexChar(s fstring, reg byte) bool {
	n := len(s.str)
	if n < 2 || s.str[n-2] != ',' {
		return false
	}
	c := s.str[n-1]
	return c == reg || c == reg+('a'-'A')
}

func trimTrailingIndex(s fstring) fstring {
	return s.trunc(len(s.str) - 2)
}

// stripIndexSuffix removes a trailing ",X" or ",Y" (case-insensitive in
// the register letter) and reports which register it named, 0 if none.
func stripIndexSuffix(t fstring) (fstring, byte) {
	if endsWithIndexChar(t, 'X') {
		return trimTrailingIndex(t), 'X'
	}
	if endsWithIndexChar(t, 'Y') {
		return trimTrailingIndex(t), 'Y'
	}
	return t, 0
}

// stripForcePrefix detects an operand-initial '<' (force ZeroPage) or
// '>' (force Absolute), distinct from the byte-extraction unary
// operators the expression evaluator recognizes inside the expression
// itself: the force reading applies only at the very start of the
// operand.
func stripForcePrefix(t fstring) (forceZero, forceAbs bool, rest fstring) {
	if t.startsWithChar('<') {
		return true, false, t.consume(1)
	}
	if t.startsWithChar('>') {
		return false, true, t.consume(1)
	}
	return false, false, t
}
