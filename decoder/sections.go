package decoder

import (
	"bytes"
	"fmt"

	"github.com/bvisness/wasm-inspect/parser"
	"github.com/bvisness/wasm-inspect/utils"
	"go.uber.org/zap"
)

// decodeSection decodes one section with a parser scoped to its body, so a
// failure here cannot misalign the sections that follow.
func decodeSection(s Section, m *Module, log *zap.Logger) error {
	p := parser.NewParserFromBytes(s.Body, s.Offset)

	var err error
	switch s.ID {
	case SectionCustom:
		err = decodeCustomSection(&p, m)
	case SectionType:
		err = decodeTypeSection(&p, m)
	case SectionImport:
		err = decodeImportSection(&p, m)
	case SectionFunction:
		err = decodeFunctionSection(&p, m)
	case SectionMemory:
		err = decodeMemorySection(&p, m)
	case SectionExport:
		err = decodeExportSection(&p, m)
	default:
		// Passed through without looking inside.
		log.Debug("skipped section", zap.Stringer("section", s.ID), zap.Int("size", len(s.Body)))
		return nil
	}
	if err == nil && !p.AtEnd() {
		err = fmt.Errorf("%d unread bytes at offset %d: %w", p.Remaining(), p.Cur, parser.ErrSectionLengthMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s section (id %d) at offset %d: %w", s.ID, byte(s.ID), s.Offset, err)
	}

	log.Debug("decoded section",
		zap.Stringer("section", s.ID),
		zap.Int("types", len(m.Types)),
		zap.Int("functions", len(m.Functions)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("exports", len(m.Exports)),
		zap.Int("memories", len(m.Memories)),
		zap.Int("customs", len(m.Customs)),
	)
	return nil
}

// capped bounds a preallocation by the bytes left to read, since every entry
// takes at least one byte. A declared count is not trusted on its own, and
// may not fit in an int.
func capped(count uint32, p *parser.Parser) int {
	if uint64(count) < uint64(p.Remaining()) {
		return int(count)
	}
	return p.Remaining()
}

func decodeCustomSection(p *parser.Parser, m *Module) error {
	name, err := p.ReadName("custom section name")
	if err != nil {
		return err
	}
	data, err := p.ReadRemaining("custom section data")
	if err != nil {
		return err
	}
	var owned []byte
	if len(data) > 0 {
		owned = bytes.Clone(data)
	}
	m.Customs = append(m.Customs, CustomSection{
		Name: name,
		Data: owned,
	})
	return nil
}

func decodeTypeSection(p *parser.Parser, m *Module) error {
	numGroups, _, err := p.ReadU32("num rec groups")
	if err != nil {
		return err
	}

	group := 0
	if len(m.Types) > 0 {
		group = m.Types[len(m.Types)-1].Group + 1
	}
	for range numGroups {
		form, err := p.PeekByte("rec group form")
		if err != nil {
			return err
		}

		numTypes := uint32(1)
		if form == parser.FormRec {
			utils.Must1(p.ReadByte("rec group form"))
			numTypes, _, err = p.ReadU32(fmt.Sprintf("size of rec group %d", group))
			if err != nil {
				return err
			}
		}
		for range numTypes {
			entry, err := readSubType(p, len(m.Types))
			if err != nil {
				return err
			}
			entry.Group = group
			m.Types = append(m.Types, entry)
		}
		group += 1
	}
	return nil
}

func readSubType(p *parser.Parser, typeIdx int) (entry TypeEntry, err error) {
	thing := fmt.Sprintf("type %d", typeIdx)

	p.StartRecording()
	defer func() {
		raw := p.StopRecording()
		if err == nil && entry.Kind == TypeOther {
			entry.Other.Raw = raw
		}
	}()

	form, err := p.ReadByte(thing)
	if err != nil {
		return TypeEntry{}, err
	}
	if form == parser.FormSub || form == parser.FormSubFinal {
		numSupers, _, err := p.ReadU32(fmt.Sprintf("num supertypes of %s", thing))
		if err != nil {
			return TypeEntry{}, err
		}
		for range numSupers {
			if _, _, err := p.ReadU32(fmt.Sprintf("supertype of %s", thing)); err != nil {
				return TypeEntry{}, err
			}
		}
		if form, err = p.ReadByte(thing); err != nil {
			return TypeEntry{}, err
		}
	}

	switch form {
	case parser.FormFunc:
		params, err := readValTypes(p, fmt.Sprintf("params of %s", thing))
		if err != nil {
			return TypeEntry{}, err
		}
		results, err := readValTypes(p, fmt.Sprintf("results of %s", thing))
		if err != nil {
			return TypeEntry{}, err
		}
		return TypeEntry{
			Kind: TypeFunc,
			Func: FuncType{Params: params, Results: results},
		}, nil
	case parser.FormStruct:
		numFields, _, err := p.ReadU32(fmt.Sprintf("num fields of %s", thing))
		if err != nil {
			return TypeEntry{}, err
		}
		for i := range numFields {
			if _, err := p.ReadFieldType(fmt.Sprintf("field %d of %s", i, thing)); err != nil {
				return TypeEntry{}, err
			}
		}
	case parser.FormArray:
		if _, err := p.ReadFieldType(fmt.Sprintf("element of %s", thing)); err != nil {
			return TypeEntry{}, err
		}
	default:
		return TypeEntry{}, fmt.Errorf("%s at offset %d: form 0x%02x: %w", thing, p.Cur-1, form, parser.ErrInvalidTypeForm)
	}

	return TypeEntry{
		Kind:  TypeOther,
		Other: OtherType{Form: form},
	}, nil
}

func readValTypes(p *parser.Parser, thing string) ([]parser.ValType, error) {
	n, _, err := p.ReadU32(fmt.Sprintf("num %s", thing))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	res := make([]parser.ValType, 0, capped(n, p))
	for range n {
		t, err := p.ReadValType(thing)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func decodeFunctionSection(p *parser.Parser, m *Module) error {
	numFuncs, _, err := p.ReadU32("num functions")
	if err != nil {
		return err
	}
	m.Functions = growBy(m.Functions, capped(numFuncs, p))
	for i := range numFuncs {
		typeIdx, _, err := p.ReadU32(fmt.Sprintf("type index of function %d", i))
		if err != nil {
			return err
		}
		m.Functions = append(m.Functions, typeIdx)
	}
	return nil
}

func decodeImportSection(p *parser.Parser, m *Module) error {
	numImports, _, err := p.ReadU32("num imports")
	if err != nil {
		return err
	}
	for range numImports {
		modName, err := p.ReadName("import module")
		if err != nil {
			return err
		}

		itemName, err := p.ReadName("import name")
		if err != nil {
			return err
		}

		at := p.Cur
		importType, err := p.ReadByte("import type")
		if err != nil {
			return err
		}
		switch parser.ExternKind(importType) {
		case parser.ExternFunc:
			_, _, err = p.ReadU32("type of imported function")
		case parser.ExternTable:
			_, err = p.ReadTableType("type of imported table")
		case parser.ExternMemory:
			_, err = p.ReadMemType("type of imported memory")
		case parser.ExternGlobal:
			_, err = p.ReadGlobalType("type of imported global")
		case parser.ExternTag:
			_, err = p.ReadTagType("type of imported tag")
		default:
			err = fmt.Errorf("import %q.%q at offset %d: kind 0x%02x: %w", modName, itemName, at, importType, parser.ErrInvalidImportKind)
		}
		if err != nil {
			return err
		}

		m.Imports = append(m.Imports, Import{
			Module: modName,
			Name:   itemName,
			Kind:   parser.ExternKind(importType),
		})
	}
	return nil
}

func decodeExportSection(p *parser.Parser, m *Module) error {
	numExports, _, err := p.ReadU32("num exports")
	if err != nil {
		return err
	}
	for range numExports {
		name, err := p.ReadName("export name")
		if err != nil {
			return err
		}

		at := p.Cur
		kind, err := p.ReadByte("export kind")
		if err != nil {
			return err
		}
		if !parser.ExternKind(kind).Valid() {
			return fmt.Errorf("export %q at offset %d: kind 0x%02x: %w", name, at, kind, parser.ErrInvalidExportKind)
		}

		idx, _, err := p.ReadU32(fmt.Sprintf("index of export %q", name))
		if err != nil {
			return err
		}

		m.Exports = append(m.Exports, Export{
			Name:  name,
			Kind:  parser.ExternKind(kind),
			Index: idx,
		})
	}
	return nil
}

func decodeMemorySection(p *parser.Parser, m *Module) error {
	numMems, _, err := p.ReadU32("num memories")
	if err != nil {
		return err
	}
	for i := range numMems {
		mem, err := p.ReadMemType(fmt.Sprintf("memory %d", i))
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, mem.Lim)
	}
	return nil
}

func growBy[T any](s []T, n int) []T {
	if n == 0 {
		return s
	}
	return append(make([]T, 0, len(s)+n), s...)
}
