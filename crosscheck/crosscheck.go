// Package crosscheck compiles a module with wazero and compares what wazero
// sees against a decoded summary of the same bytes.
package crosscheck

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/bvisness/wasm-inspect/decoder"
	"github.com/bvisness/wasm-inspect/parser"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Mismatch is one disagreement between the summary and wazero.
type Mismatch struct {
	What    string
	Decoded string
	Wazero  string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: decoded %s, wazero %s", m.What, m.Decoded, m.Wazero)
}

// Check compiles wasm and reports every place where wazero's view of exported
// functions, exported memories, and custom sections differs from m. An error
// means wazero rejected the module.
func Check(ctx context.Context, m *decoder.Module, wasm []byte) ([]Mismatch, error) {
	cfg := wazero.NewRuntimeConfigInterpreter().WithCustomSections(true)
	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("wazero rejected module: %w", err)
	}
	defer compiled.Close(ctx)

	var res []Mismatch
	res = append(res, checkFunctions(m, compiled.ExportedFunctions())...)
	res = append(res, checkMemories(m, compiled.ExportedMemories())...)
	res = append(res, checkCustoms(m, compiled.CustomSections())...)
	return res, nil
}

func numImported(m *decoder.Module, kind parser.ExternKind) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

func exportsOf(m *decoder.Module, kind parser.ExternKind) map[string]uint32 {
	res := map[string]uint32{}
	for _, exp := range m.Exports {
		if exp.Kind == kind {
			res[exp.Name] = exp.Index
		}
	}
	return res
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkFunctions(m *decoder.Module, defs map[string]api.FunctionDefinition) []Mismatch {
	var res []Mismatch
	exports := exportsOf(m, parser.ExternFunc)
	imported := numImported(m, parser.ExternFunc)

	for _, name := range sortedKeys(exports) {
		def, ok := defs[name]
		if !ok {
			res = append(res, Mismatch{What: fmt.Sprintf("exported function %q", name), Decoded: "present", Wazero: "missing"})
			continue
		}

		// Signatures of imported functions are not part of the summary.
		idx := int(exports[name]) - imported
		if idx < 0 {
			continue
		}
		ft, ok := m.FuncType(idx)
		if !ok {
			res = append(res, Mismatch{What: fmt.Sprintf("signature of %q", name), Decoded: "unknown", Wazero: signature(def.ParamTypes(), def.ResultTypes())})
			continue
		}
		params, results := encodeAll(ft.Params), encodeAll(ft.Results)
		if !slices.Equal(params, def.ParamTypes()) || !slices.Equal(results, def.ResultTypes()) {
			res = append(res, Mismatch{
				What:    fmt.Sprintf("signature of %q", name),
				Decoded: signature(params, results),
				Wazero:  signature(def.ParamTypes(), def.ResultTypes()),
			})
		}
	}
	for _, name := range sortedKeys(defs) {
		if _, ok := exports[name]; !ok {
			res = append(res, Mismatch{What: fmt.Sprintf("exported function %q", name), Decoded: "missing", Wazero: "present"})
		}
	}
	return res
}

func checkMemories(m *decoder.Module, defs map[string]api.MemoryDefinition) []Mismatch {
	var res []Mismatch
	exports := exportsOf(m, parser.ExternMemory)
	imported := numImported(m, parser.ExternMemory)

	for _, name := range sortedKeys(exports) {
		def, ok := defs[name]
		if !ok {
			res = append(res, Mismatch{What: fmt.Sprintf("exported memory %q", name), Decoded: "present", Wazero: "missing"})
			continue
		}
		idx := int(exports[name]) - imported
		if idx < 0 {
			continue
		}
		if idx >= len(m.Memories) {
			res = append(res, Mismatch{What: fmt.Sprintf("limits of %q", name), Decoded: "no such memory", Wazero: limits(def)})
			continue
		}
		lim := m.Memories[idx]
		decoded := fmt.Sprintf("min=%d", lim.Min)
		if lim.HasMax {
			decoded += fmt.Sprintf(" max=%d", lim.Max)
		}
		if theirs := limits(def); decoded != theirs {
			res = append(res, Mismatch{What: fmt.Sprintf("limits of %q", name), Decoded: decoded, Wazero: theirs})
		}
	}
	for _, name := range sortedKeys(defs) {
		if _, ok := exports[name]; !ok {
			res = append(res, Mismatch{What: fmt.Sprintf("exported memory %q", name), Decoded: "missing", Wazero: "present"})
		}
	}
	return res
}

// wazero consumes the "name" section itself instead of listing it.
func checkCustoms(m *decoder.Module, theirs []api.CustomSection) []Mismatch {
	var ours []decoder.CustomSection
	for _, c := range m.Customs {
		if c.Name != "name" {
			ours = append(ours, c)
		}
	}

	var res []Mismatch
	if len(ours) != len(theirs) {
		return append(res, Mismatch{
			What:    "custom sections",
			Decoded: fmt.Sprint(len(ours)),
			Wazero:  fmt.Sprint(len(theirs)),
		})
	}
	for i := range ours {
		if ours[i].Name != theirs[i].Name() || !bytes.Equal(ours[i].Data, theirs[i].Data()) {
			res = append(res, Mismatch{
				What:    fmt.Sprintf("custom section %d", i),
				Decoded: fmt.Sprintf("%q (%d bytes)", ours[i].Name, len(ours[i].Data)),
				Wazero:  fmt.Sprintf("%q (%d bytes)", theirs[i].Name(), len(theirs[i].Data())),
			})
		}
	}
	return res
}

func limits(def api.MemoryDefinition) string {
	s := fmt.Sprintf("min=%d", def.Min())
	if mx, ok := def.Max(); ok {
		s += fmt.Sprintf(" max=%d", mx)
	}
	return s
}

func encodeAll(types []parser.ValType) []api.ValueType {
	res := make([]api.ValueType, 0, len(types))
	for _, t := range types {
		switch {
		case t.IsNumType():
			res = append(res, t.NumType().Byte())
		case t.IsVecType():
			res = append(res, t.VecType().Byte())
		default:
			res = append(res, t.RefType().HT.Byte())
		}
	}
	return res
}

func signature(params, results []api.ValueType) string {
	return fmt.Sprintf("(%s) -> (%s)", typeNames(params), typeNames(results))
}

func typeNames(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
		if names[i] == "unknown" {
			names[i] = fmt.Sprintf("0x%02x", t)
		}
	}
	return strings.Join(names, ", ")
}
