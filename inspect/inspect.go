// Package inspect renders a decoded module as a human-readable report.
package inspect

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bvisness/wasm-inspect/decoder"
	"github.com/bvisness/wasm-inspect/parser"
	"github.com/charmbracelet/lipgloss"
)

type Options struct {
	// ShowCustomSections lists custom section names.
	ShowCustomSections bool
	// Verbose adds imports, every memory, and the section table.
	Verbose bool
}

type styles struct {
	title, label, value, bad lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		label: r.NewStyle().Bold(true),
		value: r.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}
}

// Render writes the report for m to w.
func Render(w io.Writer, m *decoder.Module, opts Options) error {
	st := newStyles(w)
	var b strings.Builder

	line := func(indent int, label, value string) {
		b.WriteString(strings.Repeat("  ", indent))
		b.WriteString("- ")
		b.WriteString(st.label.Render(label))
		if value != "" {
			b.WriteString(": ")
			b.WriteString(value)
		}
		b.WriteByte('\n')
	}

	b.WriteString(st.title.Render("📦 WASM Summary"))
	b.WriteByte('\n')

	line(0, "Functions", st.value.Render(strconv.Itoa(len(m.Functions))))
	for i := range m.Functions {
		if ft, ok := m.FuncType(i); ok {
			line(1, fmt.Sprintf("func[%d]", i), Signature(ft))
		} else {
			line(1, fmt.Sprintf("func[%d]", i), st.bad.Render(fmt.Sprintf("type %d is not a function type", m.Functions[i])))
		}
	}

	if opts.Verbose {
		line(0, "Imports", st.value.Render(strconv.Itoa(len(m.Imports))))
		for _, imp := range m.Imports {
			line(1, imp.Kind.String(), fmt.Sprintf("%s.%s", imp.Module, imp.Name))
		}
	}

	var names []string
	for _, exp := range m.Exports {
		names = append(names, exp.Name)
	}
	line(0, "Exports", quotedList(names))

	line(0, "Memory Pages", st.value.Render(strconv.FormatUint(MemoryPages(m), 10)))
	if opts.Verbose || len(m.Memories) > 1 {
		for i, lim := range m.Memories {
			line(1, fmt.Sprintf("memory[%d]", i), Limits(lim))
		}
	}

	if opts.ShowCustomSections {
		var customs []string
		for _, c := range m.Customs {
			customs = append(customs, c.Name)
		}
		line(0, "Custom Sections", quotedList(customs))
	}

	if opts.Verbose {
		line(0, "Sections", st.value.Render(strconv.Itoa(len(m.Sections))))
		for _, s := range m.Sections {
			line(1, s.ID.String(), fmt.Sprintf("id=%d offset=%d size=%d", byte(s.ID), s.Offset, s.Size))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// MemoryPages is the initial page count of the first declared memory, or zero
// if the module declares none.
func MemoryPages(m *decoder.Module) uint64 {
	if len(m.Memories) == 0 {
		return 0
	}
	return m.Memories[0].Min
}

func Signature(ft decoder.FuncType) string {
	return fmt.Sprintf("(%s) -> (%s)", typeList(ft.Params), typeList(ft.Results))
}

func Limits(lim parser.Limits) string {
	s := fmt.Sprintf("initial=%d", lim.Min)
	if lim.HasMax {
		s += fmt.Sprintf(" max=%d", lim.Max)
	}
	if lim.Shared {
		s += " shared"
	}
	if lim.AT == parser.ATI64 {
		s += " i64"
	}
	return s
}

func typeList(types []parser.ValType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
