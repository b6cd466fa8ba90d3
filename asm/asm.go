// Package asm implements the two-pass MIPS-I assembler: source text in,
// loader.Program out. Pass 1 walks the .data and .text sections
// allocating addresses and recording labels; pass 2 resolves each
// instruction's operands against the label table and encodes it.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/archlab/mipsooo/isa"
	"github.com/archlab/mipsooo/loader"
)

// TextBase is the fixed address the .text section is laid out from.
const TextBase = uint32(0x00001000)

// DataBase is the fixed address the .data section is laid out from.
const DataBase = uint32(32)

// statement is one parsed source line: an optional label, and either a
// .word directive's values (data section) or an opcode plus its operand
// tokens (text section).
type statement struct {
	lineNo int
	label  string

	isData     bool
	dataValues []int64

	op   string
	args []string
}

// section tracks which half of the two-section source format is active.
type section int

const (
	sectionNone section = iota
	sectionData
	sectionText
)

// Assemble runs both passes over r and returns the assembled program, ready
// to be written out with loader.Save.
func Assemble(r io.Reader) (*loader.Program, error) {
	stmts, err := scan(r)
	if err != nil {
		return nil, err
	}

	labels, dataWords, textStmts, err := pass1(stmts)
	if err != nil {
		return nil, err
	}

	textWords, err := pass2(textStmts, labels)
	if err != nil {
		return nil, err
	}

	prog := &loader.Program{Entry: TextBase}
	if len(dataWords) > 0 {
		words := make([]uint32, len(dataWords))
		for i, v := range dataWords {
			words[i] = uint32(v)
		}
		prog.Regions = append(prog.Regions, loader.Region{
			Addr: DataBase,
			Text: false,
			Data: wordsToBytes(words),
		})
	}
	if len(textWords) > 0 {
		prog.Regions = append(prog.Regions, loader.Region{
			Addr: TextBase,
			Text: true,
			Data: wordsToBytes(textWords),
		})
	}
	return prog, nil
}

// scan splits r into statements, stripping comments and blank lines and
// exploding ';'-separated statements on one physical line.
func scan(r io.Reader) ([]statement, error) {
	var out []statement

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}

		for _, piece := range strings.Split(line, ";") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			stmt, err := parseStatement(lineNo, piece)
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				out = append(out, *stmt)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("asm: reading source: %w", err)
	}
	return out, nil
}

// parseStatement parses one ';'-delimited piece of source into a
// statement. A section marker comes back as a statement whose label is one
// of the sentinel values below, which pass1 recognises and handles
// separately.
func parseStatement(lineNo int, piece string) (*statement, error) {
	switch piece {
	case ".data":
		return &statement{lineNo: lineNo, label: sectionMarkerData}, nil
	case ".text":
		return &statement{lineNo: lineNo, label: sectionMarkerText}, nil
	}

	label := ""
	if idx := strings.IndexByte(piece, ':'); idx >= 0 {
		label = strings.TrimSpace(piece[:idx])
		piece = strings.TrimSpace(piece[idx+1:])
	}

	stmt := &statement{lineNo: lineNo, label: label}
	if piece == "" {
		return stmt, nil
	}

	fields := strings.SplitN(piece, " ", 2)
	mnemonic := strings.ToLower(strings.TrimSpace(fields[0]))

	if mnemonic == ".word" {
		if len(fields) < 2 {
			return nil, lineError(lineNo, ErrInvalidInstructionFormat, ".word with no operands")
		}
		values, err := parseWordList(lineNo, fields[1])
		if err != nil {
			return nil, err
		}
		stmt.isData = true
		stmt.dataValues = values
		return stmt, nil
	}

	if mnemonic == "nop" && len(fields) == 1 {
		// nop has no encoding of its own in this ISA; assemble it as the
		// conventional MIPS idiom sll $zero, $zero, 0.
		stmt.op = "sll"
		stmt.args = []string{"$zero", "$zero", "0"}
		return stmt, nil
	}

	stmt.op = mnemonic
	if len(fields) == 2 {
		stmt.args = splitOperands(fields[1])
	}
	return stmt, nil
}

// sectionMarkerData and sectionMarkerText are sentinel label values used
// internally to thread ".data"/".text" markers through parseStatement's
// single-return-type signature without a second statement kind.
const (
	sectionMarkerData = "\x00.data"
	sectionMarkerText = "\x00.text"
)

func parseWordList(lineNo int, s string) ([]int64, error) {
	var values []int64
	for _, tok := range splitOperands(s) {
		v, err := strconv.ParseInt(strings.TrimSpace(tok), 0, 64)
		if err != nil {
			return nil, lineError(lineNo, ErrInvalidInstructionFormat, fmt.Sprintf("bad .word value %q", tok))
		}
		values = append(values, v)
	}
	return values, nil
}

func splitOperands(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// textStatement is a pass-1-addressed instruction awaiting pass-2 operand
// resolution.
type textStatement struct {
	addr   uint32
	lineNo int
	op     string
	args   []string
}

// pass1 walks statements in order, allocating addresses — the .data
// section's words starting at DataBase, the .text section's instructions
// starting at TextBase — and records every label's resolved address.
func pass1(stmts []statement) (labels map[string]uint32, dataWords []int64, textStmts []textStatement, err error) {
	labels = make(map[string]uint32)
	sect := sectionNone
	dataAddr := DataBase
	textAddr := TextBase

	for _, s := range stmts {
		switch s.label {
		case sectionMarkerData:
			sect = sectionData
			continue
		case sectionMarkerText:
			sect = sectionText
			continue
		}

		switch sect {
		case sectionData:
			if s.label != "" {
				labels[s.label] = dataAddr
			}
			if s.isData {
				dataWords = append(dataWords, s.dataValues...)
				dataAddr += uint32(len(s.dataValues)) * 4
			}

		case sectionText:
			if s.label != "" {
				labels[s.label] = textAddr
			}
			if s.op != "" {
				textStmts = append(textStmts, textStatement{
					addr: textAddr, lineNo: s.lineNo, op: s.op, args: s.args,
				})
				textAddr += 4
			}

		default:
			if s.op != "" || s.isData {
				return nil, nil, nil, lineError(s.lineNo, ErrInvalidInstructionFormat, "instruction outside .data/.text section")
			}
		}
	}

	return labels, dataWords, textStmts, nil
}

// pass2 resolves every text statement's operands against labels and
// encodes it to a 32-bit word.
func pass2(stmts []textStatement, labels map[string]uint32) ([]uint32, error) {
	words := make([]uint32, 0, len(stmts))
	for _, s := range stmts {
		op, ok := isa.LookupMnemonic(s.op)
		if !ok {
			return nil, lineError(s.lineNo, ErrInvalidInstructionName, fmt.Sprintf("unknown mnemonic %q", s.op))
		}
		word, err := encodeStatement(s, op, labels)
		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, nil
}

// wordsToBytes lays out words as successive big-endian 32-bit values,
// matching the simulator's LSU/fetch byte order.
func wordsToBytes(words []uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = append(out, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}
	return out
}
