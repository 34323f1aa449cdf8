// Package encoder writes decoder.Module values back to the binary format. It
// exists to build fixtures for tests and only covers what a Module records;
// import descriptors, for example, are filled in with placeholders.
package encoder

import (
	"github.com/bvisness/wasm-inspect/decoder"
	"github.com/bvisness/wasm-inspect/leb128"
	"github.com/bvisness/wasm-inspect/parser"
)

// Raw is a section emitted verbatim.
type Raw struct {
	ID   decoder.SectionID
	Body []byte
}

func Header() []byte {
	var res []byte
	res = append(res, decoder.Magic()...)
	res = append(res, decoder.Version()...)
	return res
}

// Encode emits m's known sections in canonical order, then extra, then every
// custom section. Empty sections are omitted.
func Encode(m *decoder.Module, extra ...Raw) []byte {
	res := Header()

	if len(m.Types) > 0 {
		res = AppendSection(res, decoder.SectionType, encodeTypes(m.Types))
	}
	if len(m.Imports) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			body = appendImport(body, imp)
		}
		res = AppendSection(res, decoder.SectionImport, body)
	}
	if len(m.Functions) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Functions)))
		for _, ti := range m.Functions {
			body = AppendU32(body, ti)
		}
		res = AppendSection(res, decoder.SectionFunction, body)
	}
	if len(m.Memories) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Memories)))
		for _, lim := range m.Memories {
			body = AppendLimits(body, lim)
		}
		res = AppendSection(res, decoder.SectionMemory, body)
	}
	if len(m.Exports) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			body = AppendName(body, exp.Name)
			body = append(body, byte(exp.Kind))
			body = AppendU32(body, exp.Index)
		}
		res = AppendSection(res, decoder.SectionExport, body)
	}
	for _, raw := range extra {
		res = AppendSection(res, raw.ID, raw.Body)
	}
	for _, c := range m.Customs {
		res = AppendSection(res, decoder.SectionCustom, AppendName(nil, c.Name), c.Data...)
	}
	return res
}

func encodeTypes(types []decoder.TypeEntry) []byte {
	// Consecutive entries sharing a Group form one rec group.
	var groups [][]decoder.TypeEntry
	for i, t := range types {
		if i == 0 || t.Group != types[i-1].Group {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], t)
	}

	var body []byte
	body = AppendU32(body, uint32(len(groups)))
	for _, g := range groups {
		if len(g) > 1 {
			body = append(body, parser.FormRec)
			body = AppendU32(body, uint32(len(g)))
		}
		for _, t := range g {
			switch t.Kind {
			case decoder.TypeFunc:
				body = AppendFuncType(body, t.Func)
			default:
				body = append(body, t.Other.Raw...)
			}
		}
	}
	return body
}

func appendImport(s []byte, imp decoder.Import) []byte {
	s = AppendName(s, imp.Module)
	s = AppendName(s, imp.Name)
	s = append(s, byte(imp.Kind))
	switch imp.Kind {
	case parser.ExternFunc:
		s = AppendU32(s, 0)
	case parser.ExternTable:
		s = AppendValType(s, parser.FuncRef)
		s = AppendLimits(s, parser.Limits{})
	case parser.ExternMemory:
		s = AppendLimits(s, parser.Limits{})
	case parser.ExternGlobal:
		s = AppendValType(s, parser.I32)
		s = append(s, 0x00)
	case parser.ExternTag:
		s = append(s, 0x00)
		s = AppendU32(s, 0)
	}
	return s
}

// Code builds a code section whose function bodies have no locals and
// consist of instrs followed by end.
func Code(bodies ...[]byte) Raw {
	var body []byte
	body = AppendU32(body, uint32(len(bodies)))
	for _, instrs := range bodies {
		fn := append([]byte{0x00}, instrs...)
		fn = append(fn, 0x0B)
		body = AppendU32(body, uint32(len(fn)))
		body = append(body, fn...)
	}
	return Raw{ID: decoder.SectionCode, Body: body}
}

// --------------------------------
// Output

// AppendSection appends a section with the given id whose body is the
// concatenation of body and more.
func AppendSection(s []byte, id decoder.SectionID, body []byte, more ...byte) []byte {
	s = append(s, byte(id))
	s = AppendU32(s, uint32(len(body)+len(more)))
	s = append(s, body...)
	s = append(s, more...)
	return s
}

func AppendFuncType(s []byte, ft decoder.FuncType) []byte {
	s = append(s, parser.FormFunc)
	s = AppendU32(s, uint32(len(ft.Params)))
	for _, t := range ft.Params {
		s = AppendValType(s, t)
	}
	s = AppendU32(s, uint32(len(ft.Results)))
	for _, t := range ft.Results {
		s = AppendValType(s, t)
	}
	return s
}

func AppendValType(s []byte, vt parser.ValType) []byte {
	if !vt.IsRefType() {
		if vt.IsNumType() {
			return append(s, vt.NumType().Byte())
		}
		return append(s, vt.VecType().Byte())
	}

	rt := vt.RefType()
	if rt.Null && rt.HT.IsAbstractHeapType() {
		return append(s, rt.HT.Byte())
	}
	if rt.Null {
		s = append(s, parser.RTNull.Byte())
	} else {
		s = append(s, parser.RTNonNull.Byte())
	}
	return append(s, leb128.EncodeS64(int64(rt.HT))...)
}

func AppendLimits(s []byte, lim parser.Limits) []byte {
	var flags byte
	if lim.HasMax {
		flags |= 0b001
	}
	if lim.Shared {
		flags |= 0b010
	}
	if lim.AT == parser.ATI64 {
		flags |= 0b100
	}
	s = append(s, flags)
	s = append(s, leb128.EncodeU64(lim.Min)...)
	if lim.HasMax {
		s = append(s, leb128.EncodeU64(lim.Max)...)
	}
	return s
}

func AppendName(s []byte, name string) []byte {
	s = append(s, leb128.EncodeU64(uint64(len(name)))...)
	s = append(s, []byte(name)...)
	return s
}

func AppendU32(s []byte, n uint32) []byte {
	return append(s, leb128.EncodeU64(uint64(n))...)
}
