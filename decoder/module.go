package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/bvisness/wasm-inspect/parser"
	"go.uber.org/zap"
)

// Module is the decoded summary of a WebAssembly module. It holds no
// references into the buffer it was decoded from.
type Module struct {
	Types     []TypeEntry
	Functions []uint32 // type index of each declared function
	Imports   []Import
	Exports   []Export
	Memories  []parser.Limits
	Customs   []CustomSection

	// Sections lists every section in file order, including ones whose
	// contents are not decoded.
	Sections []SectionHeader
}

type TypeKind int

const (
	TypeFunc TypeKind = iota
	TypeOther
)

// TypeEntry is one slot in the type table. Func is set when Kind is
// TypeFunc, Other when Kind is TypeOther. The other one is always its zero
// value.
type TypeEntry struct {
	Kind  TypeKind
	Func  FuncType
	Other OtherType

	// Group is the index of the recursion group the entry was declared in.
	Group int
}

type FuncType struct {
	Params  []parser.ValType
	Results []parser.ValType
}

// OtherType is a struct or array type. Raw holds its encoding, including any
// subtype prefix.
type OtherType struct {
	Form byte
	Raw  []byte
}

type Import struct {
	Module, Name string
	Kind         parser.ExternKind
}

type Export struct {
	Name  string
	Kind  parser.ExternKind
	Index uint32
}

type CustomSection struct {
	Name string
	Data []byte
}

type SectionHeader struct {
	ID     SectionID
	Offset int // file offset of the section contents
	Size   int
}

// FuncType returns the signature of the i'th declared function. It reports
// false if i is out of range or the function's type is not a function type.
func (m *Module) FuncType(i int) (FuncType, bool) {
	if i < 0 || i >= len(m.Functions) {
		return FuncType{}, false
	}
	ti := m.Functions[i]
	if uint64(ti) >= uint64(len(m.Types)) || m.Types[ti].Kind != TypeFunc {
		return FuncType{}, false
	}
	return m.Types[ti].Func, true
}

// DanglingTypeIndexError reports a function whose type index lies outside the
// type table.
type DanglingTypeIndexError struct {
	FunctionIndex int
	TypeIndex     uint32
	NumTypes      int
}

func (e *DanglingTypeIndexError) Error() string {
	return fmt.Sprintf("function %d references type index %d, but there are only %d types",
		e.FunctionIndex, e.TypeIndex, e.NumTypes)
}

func (e *DanglingTypeIndexError) Unwrap() error {
	return parser.ErrDanglingTypeIndex
}

// DecodeModule decodes a complete binary module. On any error it returns a nil
// Module; there is no partial result.
func DecodeModule(wasm []byte, opts ...Option) (*Module, error) {
	sections, err := Frame(wasm, opts...)
	if err != nil {
		return nil, err
	}
	log := sections.cfg.logger

	m := &Module{}
	for {
		s, err := sections.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		m.Sections = append(m.Sections, SectionHeader{
			ID:     s.ID,
			Offset: s.Offset,
			Size:   len(s.Body),
		})
		if err := decodeSection(s, m, log); err != nil {
			return nil, err
		}
	}

	if err := checkTypeIndices(m); err != nil {
		log.Debug("type index check failed", zap.Error(err))
		return nil, err
	}
	log.Debug("type index check passed", zap.Int("functions", len(m.Functions)), zap.Int("types", len(m.Types)))

	log.Debug("module decoded",
		zap.Int("sections", len(m.Sections)),
		zap.Int("types", len(m.Types)),
		zap.Int("functions", len(m.Functions)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("exports", len(m.Exports)),
		zap.Int("memories", len(m.Memories)),
		zap.Int("customs", len(m.Customs)),
	)
	return m, nil
}

// checkTypeIndices runs after every section has been seen, so it does not
// matter where the type section sits in the file.
func checkTypeIndices(m *Module) error {
	for i, ti := range m.Functions {
		if uint64(ti) >= uint64(len(m.Types)) {
			return &DanglingTypeIndexError{
				FunctionIndex: i,
				TypeIndex:     ti,
				NumTypes:      len(m.Types),
			}
		}
	}
	return nil
}
