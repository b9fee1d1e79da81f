package asm6502

import "strings"

// lineKind is the result of classifying one source line per spec.md
// section 4.5.
type lineKind byte

const (
	lineBlank lineKind = iota
	lineLabelOnly
	lineConstant
	lineOrigin
	lineDirective
	lineInstruction
)

var dotDirectives = map[string]bool{
	".byte":   true,
	".word":   true,
	".string": true,
	".incbin": true,
}

// parsedLine is the classified shape of one line, with the label prefix
// (if any) split off from whatever follows it.
type parsedLine struct {
	kind      lineKind
	line      int
	label     string  // set whenever the line opens with "ident:"
	name      string  // lineConstant: the defined name
	directive string  // lineDirective: "DCB", ".byte", ".word", ".string", ".incbin"
	mnemonic  string  // lineInstruction: upper-cased mnemonic
	exprText  fstring // lineConstant, lineOrigin: the expression text
	operand   fstring // lineDirective, lineInstruction: the argument text
	source    fstring // comment-stripped source line, for Item.Source
}

func parseLine(raw fstring) (parsedLine, error) {
	stripped := raw.stripComment()
	t := stripped.trim()

	if t.isEmpty() {
		return parsedLine{kind: lineBlank, line: raw.row, source: stripped}, nil
	}

	label := ""
	if ident, rest, ok := scanLabelPrefix(t); ok {
		label = ident
		t = rest.trim()
	}

	if t.isEmpty() {
		return parsedLine{kind: lineLabelOnly, line: raw.row, label: label, source: stripped}, nil
	}

	if ident, rest, ok := scanIdentifier(t); ok {
		after := rest.trim()
		if after.startsWithChar('=') {
			return parsedLine{
				kind:     lineConstant,
				line:     raw.row,
				label:    label,
				name:     ident,
				exprText: after.consume(1).trim(),
				source:   stripped,
			}, nil
		}
	}

	if t.startsWithChar('*') {
		after := t.consume(1).trim()
		if after.startsWithChar('=') {
			return parsedLine{
				kind:     lineOrigin,
				line:     raw.row,
				label:    label,
				exprText: after.consume(1).trim(),
				source:   stripped,
			}, nil
		}
		return parsedLine{}, newError(MalformedOperand, raw.row, t.str, "malformed origin directive")
	}

	token, rest := t.consumeUntil(whitespace)
	upper := strings.ToUpper(token.str)

	if upper == "DCB" {
		return parsedLine{
			kind:      lineDirective,
			line:      raw.row,
			label:     label,
			directive: "DCB",
			operand:   rest.trim(),
			source:    stripped,
		}, nil
	}

	if dotDirectives[token.str] {
		return parsedLine{
			kind:      lineDirective,
			line:      raw.row,
			label:     label,
			directive: token.str,
			operand:   rest.trim(),
			source:    stripped,
		}, nil
	}

	if token.startsWithChar('.') {
		return parsedLine{}, newError(UnknownDirective, raw.row, token.str, "unknown directive")
	}

	return parsedLine{
		kind:     lineInstruction,
		line:     raw.row,
		label:    label,
		mnemonic: upper,
		operand:  rest.trim(),
		source:   stripped,
	}, nil
}

// scanLabelPrefix recognizes an identifier immediately followed by ':'
// at the start of s, with no intervening whitespace.
func scanLabelPrefix(s fstring) (ident string, rest fstring, ok bool) {
	if !s.startsWith(identStartChar) {
		return "", s, false
	}
	n := s.scanWhile(identChar)
	if n >= len(s.str) || s.str[n] != ':' {
		return "", s, false
	}
	return s.str[:n], s.consume(n + 1), true
}

func scanIdentifier(s fstring) (ident string, rest fstring, ok bool) {
	if !s.startsWith(identStartChar) {
		return "", s, false
	}
	lit, r := s.consumeWhile(identChar)
	return lit.str, r, true
}
