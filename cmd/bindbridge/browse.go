package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bindbridge/registry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browserState int

const (
	stateList browserState = iota
	stateFilter
	stateDetail
)

type browserModel struct {
	reg      *registry.Registry
	filename string
	table    table.Model
	filter   textinput.Model
	shown    []*registry.Record
	state    browserState
}

func newBrowserModel(filename string, reg *registry.Registry) *browserModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: 16},
			{Title: "Go type", Width: 40},
			{Title: "Holder", Width: 8},
			{Title: "Size", Width: 5},
			{Title: "Align", Width: 5},
			{Title: "Technology", Width: 22},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	fi := textinput.New()
	fi.Prompt = "filter: "
	fi.Placeholder = "name or technology"
	fi.Width = 40

	m := &browserModel{
		reg:      reg,
		filename: filename,
		table:    t,
		filter:   fi,
		state:    stateList,
	}
	m.refresh()
	return m
}

// refresh rebuilds the rows from the registry and the current filter.
func (m *browserModel) refresh() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.shown = m.shown[:0]
	var rows []table.Row
	for i := range m.reg.Len() {
		rec, _ := m.reg.ByIndex(i)
		if q != "" &&
			!strings.Contains(strings.ToLower(rec.Name), q) &&
			!strings.Contains(strings.ToLower(rec.Technology), q) {
			continue
		}
		m.shown = append(m.shown, rec)
		rows = append(rows, typeRow(rec))
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func (m *browserModel) selected() *registry.Record {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.shown) {
		return nil
	}
	return m.shown[i]
}

func (m *browserModel) Init() tea.Cmd { return nil }

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)
	if isKey && key.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateFilter:
		if isKey {
			switch key.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateList
				m.table.Focus()
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refresh()
		return m, cmd

	case stateDetail:
		if isKey {
			switch key.String() {
			case "q":
				return m, tea.Quit
			case "esc", "enter", "backspace":
				m.state = stateList
			}
		}
		return m, nil
	}

	if isKey {
		switch key.String() {
		case "q":
			return m, tea.Quit
		case "/":
			m.state = stateFilter
			m.table.Blur()
			return m, m.filter.Focus()
		case "enter":
			if m.selected() != nil {
				m.state = stateDetail
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("bindbridge types"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.state == stateDetail {
		b.WriteString(m.detail(m.selected()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • q quit"))
	return b.String()
}

func (m *browserModel) detail(rec *registry.Record) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", nameStyle.Render(rec.Name), typeStyle.Render(rec.Type.String()))
	fmt.Fprintf(&b, "  index       %d\n", rec.Index)
	fmt.Fprintf(&b, "  holder      %s\n", rec.Holder)
	fmt.Fprintf(&b, "  technology  %s\n", rec.Technology)
	fmt.Fprintf(&b, "  layout      %d bytes, align %d\n", rec.Layout.Size, rec.Layout.Align)

	if fields := shapeFields(rec.Layout.Shape); len(fields) > 0 {
		b.WriteString("\n  fields\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "    %s: %s\n", f.Name, typeStyle.Render(witTypeStr(f.Type)))
		}
	}

	if rec.Class != nil {
		if attrs := sortedKeys(rec.Class.Attrs); len(attrs) > 0 {
			fmt.Fprintf(&b, "\n  attributes  %s\n", strings.Join(attrs, ", "))
		}
		if methods := sortedKeys(rec.Class.Methods); len(methods) > 0 {
			fmt.Fprintf(&b, "  methods     %s\n", strings.Join(methods, ", "))
		}
		if hooks := rec.Class.Hooks(); len(hooks) > 0 {
			fmt.Fprintf(&b, "  hooks       %s\n", strings.Join(hooks, ", "))
		}
	}
	return b.String()
}

func shapeFields(t wit.Type) []wit.Field {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil
	}
	rec, ok := td.Kind.(*wit.Record)
	if !ok {
		return nil
	}
	return rec.Fields
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.List:
			return "list<" + witTypeStr(k.Type) + ">"
		case *wit.Option:
			return "option<" + witTypeStr(k.Type) + ">"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func runBrowser(filename string, reg *registry.Registry) error {
	p := tea.NewProgram(newBrowserModel(filename, reg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
