package crosscheck

import (
	"context"
	"testing"

	"github.com/bvisness/wasm-inspect/decoder"
	"github.com/bvisness/wasm-inspect/encoder"
	"github.com/bvisness/wasm-inspect/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executableModule() (*decoder.Module, []encoder.Raw) {
	m := &decoder.Module{
		Types: []decoder.TypeEntry{
			{Kind: decoder.TypeFunc, Func: decoder.FuncType{
				Params:  []parser.ValType{parser.I32},
				Results: []parser.ValType{parser.I32},
			}, Group: 0},
			{Kind: decoder.TypeFunc, Func: decoder.FuncType{
				Params:  []parser.ValType{parser.I64, parser.I64},
				Results: []parser.ValType{parser.I64},
			}, Group: 1},
		},
		Functions: []uint32{0, 1},
		Memories:  []parser.Limits{{Min: 1, Max: 2, HasMax: true}},
		Exports: []decoder.Export{
			{Name: "main", Kind: parser.ExternFunc, Index: 0},
			{Name: "add", Kind: parser.ExternFunc, Index: 1},
			{Name: "mem", Kind: parser.ExternMemory, Index: 0},
		},
		Customs: []decoder.CustomSection{{Name: "meta", Data: []byte("hello")}},
	}
	code := encoder.Code(
		[]byte{0x20, 0x00},                   // local.get 0
		[]byte{0x20, 0x00, 0x20, 0x01, 0x7C}, // local.get 0, local.get 1, i64.add
	)
	return m, []encoder.Raw{code}
}

func TestCheckAgrees(t *testing.T) {
	want, extra := executableModule()
	bin := encoder.Encode(want, extra...)

	m, err := decoder.DecodeModule(bin)
	require.NoError(t, err)

	mismatches, err := Check(context.Background(), m, bin)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestCheckWithImports(t *testing.T) {
	want, extra := executableModule()
	want.Imports = []decoder.Import{{Module: "env", Name: "f", Kind: parser.ExternFunc}}
	want.Exports = []decoder.Export{
		{Name: "f", Kind: parser.ExternFunc, Index: 0},
		{Name: "main", Kind: parser.ExternFunc, Index: 1},
	}
	bin := encoder.Encode(want, extra...)

	m, err := decoder.DecodeModule(bin)
	require.NoError(t, err)

	mismatches, err := Check(context.Background(), m, bin)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestCheckReportsDifferences(t *testing.T) {
	want, extra := executableModule()
	bin := encoder.Encode(want, extra...)

	m, err := decoder.DecodeModule(bin)
	require.NoError(t, err)
	m.Types[0].Func.Results = []parser.ValType{parser.F64}
	m.Memories[0].Max = 3
	m.Exports = append(m.Exports, decoder.Export{Name: "ghost", Kind: parser.ExternFunc, Index: 0})
	m.Customs = nil

	mismatches, err := Check(context.Background(), m, bin)
	require.NoError(t, err)

	var what []string
	for _, mm := range mismatches {
		what = append(what, mm.What)
	}
	assert.ElementsMatch(t, []string{
		`exported function "ghost"`,
		`signature of "main"`,
		`limits of "mem"`,
		"custom sections",
	}, what)

	for _, mm := range mismatches {
		if mm.What == `signature of "main"` {
			assert.Equal(t, "(i32) -> (f64)", mm.Decoded)
			assert.Equal(t, "(i32) -> (i32)", mm.Wazero)
		}
		if mm.What == `limits of "mem"` {
			assert.Equal(t, `limits of "mem": decoded min=1 max=3, wazero min=1 max=2`, mm.String())
		}
	}
}

func TestCheckRejected(t *testing.T) {
	want, _ := executableModule()
	// No code section for the declared functions.
	bin := encoder.Encode(want)

	m, err := decoder.DecodeModule(bin)
	require.NoError(t, err)

	_, err = Check(context.Background(), m, bin)
	assert.ErrorContains(t, err, "wazero rejected module")
}
