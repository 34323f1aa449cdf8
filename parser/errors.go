package parser

import (
	"errors"

	"github.com/bvisness/wasm-inspect/leb128"
)

// Every failure the decoder can report wraps exactly one of these. Use
// errors.Is to tell them apart.
var (
	ErrBadMagic              = errors.New("bad magic number")
	ErrUnsupportedVersion    = errors.New("unsupported version")
	ErrUnexpectedEOF         = leb128.ErrUnexpectedEOF
	ErrMalformedVarint       = leb128.ErrMalformed
	ErrOverflow              = leb128.ErrOverflow
	ErrInvalidUTF8           = errors.New("invalid UTF-8")
	ErrTruncatedSection      = errors.New("truncated section")
	ErrSectionTooLarge       = errors.New("section exceeds size limit")
	ErrInvalidValueType      = errors.New("invalid value type")
	ErrInvalidTypeForm       = errors.New("invalid composite type form")
	ErrInvalidExportKind     = errors.New("invalid export kind")
	ErrInvalidImportKind     = errors.New("invalid import kind")
	ErrInvalidFlag           = errors.New("invalid flag byte")
	ErrSectionLengthMismatch = errors.New("section length mismatch")
	ErrDanglingTypeIndex     = errors.New("dangling type index")
)
