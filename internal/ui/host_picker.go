package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// hostItem implements list.Item for the Bubbles list component.
type hostItem struct {
	entry  sshutil.HostEntry
	picked bool
}

func (i hostItem) Title() string {
	box := "[ ]"
	if i.picked {
		box = "[x]"
	}
	return box + " " + i.entry.Alias
}

func (i hostItem) Description() string {
	return i.entry.Summary()
}

func (i hostItem) FilterValue() string {
	values := []string{i.entry.Alias}
	if i.entry.Address != "" {
		values = append(values, i.entry.Address)
	}
	if i.entry.User != "" {
		values = append(values, i.entry.User)
	}
	return strings.Join(values, " ")
}

// HostPickerModel lets the user tick any number of ~/.ssh/config hosts.
type HostPickerModel struct {
	list      list.Model
	selected  []sshutil.HostEntry
	cancelled bool
	quitting  bool
}

type hostPickerKeyMap struct {
	Toggle key.Binding
	Enter  key.Binding
	Quit   key.Binding
}

var hostPickerKeys = hostPickerKeyMap{
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "done"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewHostPickerModel creates a picker over entries.
func NewHostPickerModel(entries []sshutil.HostEntry) HostPickerModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = hostItem{entry: e}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Pick the hosts in your fleet"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{hostPickerKeys.Toggle, hostPickerKeys.Enter}
	}

	return HostPickerModel{list: l}
}

// Init implements tea.Model.
func (m HostPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HostPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, hostPickerKeys.Toggle):
			idx := m.list.Index()
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				item.picked = !item.picked
				return m, m.list.SetItem(idx, item)
			}
			return m, nil

		case key.Matches(msg, hostPickerKeys.Enter):
			m.selected = m.picked()
			if len(m.selected) == 0 {
				if item, ok := m.list.SelectedItem().(hostItem); ok {
					m.selected = []sshutil.HostEntry{item.entry}
				}
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, hostPickerKeys.Quit):
			m.cancelled = true
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m HostPickerModel) picked() []sshutil.HostEntry {
	var out []sshutil.HostEntry
	for _, it := range m.list.Items() {
		if item, ok := it.(hostItem); ok && item.picked {
			out = append(out, item.entry)
		}
	}
	return out
}

// View implements tea.Model.
func (m HostPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the picked hosts, nil if cancelled.
func (m HostPickerModel) Selected() []sshutil.HostEntry {
	if m.cancelled {
		return nil
	}
	return m.selected
}

// PickHosts shows the picker on the terminal.
func PickHosts(entries []sshutil.HostEntry) ([]sshutil.HostEntry, error) {
	return PickHostsWithIO(entries, os.Stdout, os.Stdin)
}

// PickHostsWithIO shows the picker with custom I/O. An empty result means
// the user cancelled.
func PickHostsWithIO(entries []sshutil.HostEntry, output io.Writer, input io.Reader) ([]sshutil.HostEntry, error) {
	if len(entries) == 0 {
		return nil, errors.New(errors.ErrConfig, "No hosts in your SSH config to pick from",
			"Add Host entries to ~/.ssh/config or type addresses in by hand.")
	}

	p := tea.NewProgram(
		NewHostPickerModel(entries),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	final, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Host picker failed",
			fmt.Sprintf("Pass hosts with --host instead (%d found in ~/.ssh/config).", len(entries)))
	}
	if m, ok := final.(HostPickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}
