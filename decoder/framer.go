package decoder

import (
	"fmt"
	"io"

	"github.com/bvisness/wasm-inspect/parser"
	"go.uber.org/zap"
)

var (
	magic   = [4]byte{0x00, 'a', 's', 'm'}
	version = [4]byte{0x01, 0x00, 0x00, 0x00}
)

// Magic returns the four bytes every module starts with.
func Magic() []byte {
	b := magic
	return b[:]
}

// Version returns the only binary format version that is accepted.
func Version() []byte {
	b := version
	return b[:]
}

// SectionID is the one-byte tag in front of every section.
type SectionID byte

const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionTag       SectionID = 13
)

var sectionNames = map[SectionID]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "data count",
	SectionTag:       "tag",
}

func (id SectionID) String() string {
	if n, ok := sectionNames[id]; ok {
		return n
	}
	return "unknown"
}

// Section is one framed section record. Body aliases the module buffer and
// Offset is the file offset of Body[0].
type Section struct {
	ID     SectionID
	Offset int
	Body   []byte
}

// SectionReader yields the sections of a module in file order.
type SectionReader struct {
	p   parser.Parser
	cfg config
}

// Frame validates the module header and returns a reader positioned at the
// first section. Decoding the same buffer again restarts the sequence.
func Frame(wasm []byte, opts ...Option) (*SectionReader, error) {
	cfg := newConfig(opts)
	p := parser.NewParser(wasm)

	if err := p.Expect("magic number", magic[:], parser.ErrBadMagic); err != nil {
		return nil, err
	}
	if err := p.Expect("version number", version[:], parser.ErrUnsupportedVersion); err != nil {
		return nil, err
	}
	cfg.logger.Debug("header accepted", zap.Int("size", len(wasm)))

	return &SectionReader{p: p, cfg: cfg}, nil
}

// Next returns the next section, or io.EOF once the buffer ends cleanly after
// a complete section.
func (r *SectionReader) Next() (Section, error) {
	if r.p.AtEnd() {
		return Section{}, io.EOF
	}

	at := r.p.Cur
	id, err := r.p.ReadByte("section id")
	if err != nil {
		return Section{}, err
	}
	sectionID := SectionID(id)
	size, _, err := r.p.ReadU32(fmt.Sprintf("size of %s section", sectionID))
	if err != nil {
		return Section{}, err
	}

	if r.cfg.maxSectionSize > 0 && uint64(size) > uint64(r.cfg.maxSectionSize) {
		return Section{}, fmt.Errorf("%s section at offset %d: declared %d bytes, limit is %d: %w",
			sectionID, at, size, r.cfg.maxSectionSize, parser.ErrSectionTooLarge)
	}
	if uint64(size) > uint64(r.p.Remaining()) {
		return Section{}, fmt.Errorf("%s section at offset %d: declared %d bytes, only %d remain: %w",
			sectionID, at, size, r.p.Remaining(), parser.ErrTruncatedSection)
	}

	bodyStart := r.p.Cur
	body, err := r.p.ReadN("section contents", int(size))
	if err != nil {
		return Section{}, err
	}

	r.cfg.logger.Debug("framed section",
		zap.Stringer("section", sectionID),
		zap.Uint8("id", id),
		zap.Int("offset", bodyStart),
		zap.Uint32("size", size),
	)

	return Section{
		ID:     sectionID,
		Offset: bodyStart,
		Body:   body,
	}, nil
}
