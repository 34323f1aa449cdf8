package parser

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/bvisness/wasm-inspect/leb128"
	"github.com/bvisness/wasm-inspect/utils"
)

// Parser is a forward-only cursor over a borrowed byte slice. Cur is the
// absolute offset of the next unread byte within the original file, so that
// errors from a parser over a single section still point into the file.
type Parser struct {
	b     []byte
	start int
	Cur   int

	// It is kind of jank that there can only be one recording at a time, but it is satisfactory for now.
	record     bool
	recordFrom int
}

func NewParser(b []byte) Parser {
	return NewParserFromBytes(b, 0)
}

// NewParserFromBytes parses b, which begins at file offset at.
func NewParserFromBytes(b []byte, at int) Parser {
	return Parser{
		b:     b,
		start: at,
		Cur:   at,
	}
}

// Pos is the number of bytes consumed so far.
func (p *Parser) Pos() int {
	return p.Cur - p.start
}

func (p *Parser) Remaining() int {
	return len(p.b) - p.Pos()
}

func (p *Parser) AtEnd() bool {
	return p.Remaining() == 0
}

func (p *Parser) StartRecording() {
	if p.record {
		panic("already recording")
	}
	p.record = true
	p.recordFrom = p.Pos()
}

// StopRecording returns a copy of every byte consumed since StartRecording.
func (p *Parser) StopRecording() []byte {
	if !p.record {
		panic("not recording")
	}
	p.record = false
	return bytes.Clone(p.b[p.recordFrom:p.Pos()])
}

// ReadN returns the next n bytes. The result aliases the parser's input.
func (p *Parser) ReadN(thing string, n int) ([]byte, error) {
	at := p.Cur
	if n < 0 || n > p.Remaining() {
		return nil, fmt.Errorf("%s at offset %d: %w", thing, at, ErrUnexpectedEOF)
	}
	pos := p.Pos()
	p.Cur += n
	return p.b[pos : pos+n], nil
}

// ReadRemaining returns every unread byte. The result aliases the parser's input.
func (p *Parser) ReadRemaining(thing string) ([]byte, error) {
	return p.ReadN(thing, p.Remaining())
}

func (p *Parser) PeekByte(thing string) (byte, error) {
	if p.AtEnd() {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, p.Cur, ErrUnexpectedEOF)
	}
	return p.b[p.Pos()], nil
}

func (p *Parser) ReadByte(thing string) (byte, error) {
	b, err := p.PeekByte(thing)
	if err != nil {
		return 0, err
	}
	p.Cur += 1
	return b, nil
}

// Reads a byte and interprets it as a signed LEB128 integer.
func (p *Parser) ReadByteAsS64(thing string) (int64, error) {
	at := p.Cur
	b, err := p.ReadByte(thing)
	if err != nil {
		return 0, err
	}
	v, _, err := leb128.DecodeS64([]byte{b})
	if err != nil {
		return 0, fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	return v, nil
}

func (p *Parser) readVarint(thing string, decode func([]byte) (int, error)) error {
	at := p.Cur
	n, err := decode(p.b[p.Pos():])
	if err != nil {
		return fmt.Errorf("%s at offset %d: %w", thing, at, err)
	}
	p.Cur += n
	return nil
}

func (p *Parser) ReadU32(thing string) (uint32, int, error) {
	var v uint32
	var n int
	err := p.readVarint(thing, func(b []byte) (int, error) {
		var err error
		v, n, err = leb128.DecodeU32(b)
		return n, err
	})
	return v, n, err
}

func (p *Parser) ReadU64(thing string) (uint64, int, error) {
	var v uint64
	var n int
	err := p.readVarint(thing, func(b []byte) (int, error) {
		var err error
		v, n, err = leb128.DecodeU64(b)
		return n, err
	})
	return v, n, err
}

func (p *Parser) ReadS33(thing string) (int64, int, error) {
	var v int64
	var n int
	err := p.readVarint(thing, func(b []byte) (int, error) {
		var err error
		v, n, err = leb128.DecodeS33(b)
		return n, err
	})
	return v, n, err
}

func (p *Parser) ReadName(thing string) (string, error) {
	n, _, err := p.ReadU32(thing)
	if err != nil {
		return "", err
	}
	at := p.Cur
	name, err := p.ReadN(thing, int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(name) {
		return "", fmt.Errorf("%s at offset %d: %w", thing, at, ErrInvalidUTF8)
	}
	return string(name), nil
}

func (p *Parser) ReadTableType(thing string) (TableType, error) {
	et, err := p.ReadRefType(fmt.Sprintf("element type for %s", thing))
	if err != nil {
		return TableType{}, err
	}
	lim, err := p.ReadLimits(fmt.Sprintf("limits for %s", thing))
	if err != nil {
		return TableType{}, err
	}
	return TableType{
		ET:  et,
		Lim: lim,
	}, nil
}

func (p *Parser) ReadMemType(thing string) (MemType, error) {
	lim, err := p.ReadLimits(fmt.Sprintf("limits for %s", thing))
	if err != nil {
		return MemType{}, err
	}
	return MemType{lim}, nil
}

func (p *Parser) ReadGlobalType(thing string) (GlobalType, error) {
	t, err := p.ReadValType(thing)
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := p.readMut(thing)
	if err != nil {
		return GlobalType{}, err
	}
	return GlobalType{
		Mut: mut,
		T:   t,
	}, nil
}

func (p *Parser) ReadTagType(thing string) (uint32, error) {
	at := p.Cur
	attr, err := p.ReadByte(thing)
	if err != nil {
		return 0, err
	}
	if attr != 0x00 {
		return 0, fmt.Errorf("%s at offset %d: tag attribute 0x%02x: %w", thing, at, attr, ErrInvalidFlag)
	}
	idx, _, err := p.ReadU32(thing)
	return idx, err
}

// ReadFieldType reads the storage type and mutability of a struct field or
// array element.
func (p *Parser) ReadFieldType(thing string) (FieldType, error) {
	b, err := p.PeekByte(thing)
	if err != nil {
		return FieldType{}, err
	}

	var ft FieldType
	switch tc := TypeCode(int8(b<<1) >> 1); tc {
	case PTI8, PTI16:
		utils.Must1(p.ReadByte(thing))
		ft.Packed = tc
	default:
		if ft.T, err = p.ReadValType(thing); err != nil {
			return FieldType{}, err
		}
	}
	if ft.Mut, err = p.readMut(thing); err != nil {
		return FieldType{}, err
	}
	return ft, nil
}

func (p *Parser) readMut(thing string) (bool, error) {
	at := p.Cur
	mut, err := p.ReadByte(thing)
	if err != nil {
		return false, err
	}
	if mut > 0x01 {
		return false, fmt.Errorf("%s at offset %d: mutability 0x%02x: %w", thing, at, mut, ErrInvalidFlag)
	}
	return mut == 0x01, nil
}

func (p *Parser) ReadValType(thing string) (ValType, error) {
	at := p.Cur

	// The encoding for value types is carefully constructed so that the numbers
	// are interpretable as negative signed LEB128 integers. But, the binary format also
	// is clear that they are one byte. We therefore parse one byte but interpret
	// it as SLEB128 for the sake of our logic.
	b, err := p.PeekByte(thing)
	if err != nil {
		return ValType{}, err
	}
	if b&0x80 != 0 {
		return ValType{}, fmt.Errorf("%s at offset %d: byte 0x%02x: %w", thing, at, b, ErrInvalidValueType)
	}
	t, err := p.ReadByteAsS64(thing)
	if err != nil {
		return ValType{}, err
	}

	switch tc := TypeCode(t); tc {
	case RTNonNull, RTNull:
		ht, err := p.ReadHeapType(thing)
		if err != nil {
			return ValType{}, err
		}
		return ValType{
			isRef: true,
			refType: RefType{
				Null: tc == RTNull,
				HT:   ht,
			},
		}, nil
	default:
		if tc.IsNumType() || tc.IsVecType() {
			return ValType{
				numOrVecType: tc,
			}, nil
		} else if tc.IsAbstractHeapType() {
			return ValType{
				isRef: true,
				refType: RefType{
					Null: true,
					HT:   tc,
				},
			}, nil
		} else {
			return ValType{}, fmt.Errorf("%s at offset %d: byte 0x%02x: %w", thing, at, b, ErrInvalidValueType)
		}
	}
}

func (p *Parser) ReadRefType(thing string) (RefType, error) {
	at := p.Cur
	kind, err := p.PeekByte(thing)
	if err != nil {
		return RefType{}, err
	}

	if kind == 0x64 || kind == 0x63 {
		utils.Must1(p.ReadByte(thing))
		ht, err := p.ReadHeapType(thing)
		if err != nil {
			return RefType{}, err
		}
		return RefType{
			Null: kind == 0x63,
			HT:   ht,
		}, nil
	}

	// Without a prefix only the abstract shorthands are allowed.
	ht, err := p.ReadHeapType(thing)
	if err != nil {
		return RefType{}, err
	}
	if !ht.IsAbstractHeapType() {
		return RefType{}, fmt.Errorf("%s at offset %d: %w", thing, at, ErrInvalidValueType)
	}
	return RefType{
		Null: true,
		HT:   ht,
	}, nil
}

func (p *Parser) ReadHeapType(thing string) (TypeCode, error) {
	at := p.Cur
	kind, n, err := p.ReadS33(thing)
	if err != nil {
		return 0, err
	}
	if kind < 0 && n != 1 {
		return 0, fmt.Errorf("%s at offset %d: invalid abstract heap type: %w", thing, at, ErrInvalidValueType)
	}
	ht := TypeCode(kind)
	if !ht.IsHeapType() {
		return 0, fmt.Errorf("%s at offset %d: invalid heap type: %w", thing, at, ErrInvalidValueType)
	}
	return ht, nil
}

func (p *Parser) ReadLimits(thing string) (Limits, error) {
	at := p.Cur
	flags, err := p.ReadByte(fmt.Sprintf("flags of %s", thing))
	if err != nil {
		return Limits{}, err
	}
	if flags&^0b111 != 0 {
		return Limits{}, fmt.Errorf("%s at offset %d: limits flags 0x%02x: %w", thing, at, flags, ErrInvalidFlag)
	}

	lim := Limits{Shared: flags&0b010 > 0}
	read := func(what string) (uint64, error) {
		if lim.AT == ATI64 {
			v, _, err := p.ReadU64(what)
			return v, err
		}
		v, _, err := p.ReadU32(what)
		return uint64(v), err
	}
	if flags&0b100 > 0 {
		lim.AT = ATI64
	}

	if lim.Min, err = read(fmt.Sprintf("min of %s", thing)); err != nil {
		return Limits{}, err
	}
	if flags&0b001 > 0 {
		if lim.Max, err = read(fmt.Sprintf("max of %s", thing)); err != nil {
			return Limits{}, err
		}
		lim.HasMax = true
	}

	return lim, nil
}

// Expect consumes len(bytes) bytes and fails with mismatch if they differ
// from bytes. Input that ends early fails with both mismatch and
// ErrUnexpectedEOF.
func (p *Parser) Expect(thing string, bytes []byte, mismatch error) error {
	at := p.Cur
	if p.Remaining() < len(bytes) {
		return fmt.Errorf("%s at offset %d: %w: %w", thing, at, mismatch, ErrUnexpectedEOF)
	}
	actual, err := p.ReadN(thing, len(bytes))
	if err != nil {
		return err
	}
	if err := AssertBytesEqual(at, actual, bytes); err != nil {
		return fmt.Errorf("reading %s: %w: %w", thing, err, mismatch)
	}
	return nil
}

func AssertBytesEqual(at int, actual, expected []byte) error {
	if !bytes.Equal(actual, expected) {
		return fmt.Errorf("at offset %d: expected bytes %+v but got %+v", at, expected, actual)
	}
	return nil
}
