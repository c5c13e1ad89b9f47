package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextTable  key.Binding
	PrevTable  key.Binding
	NextOrder  key.Binding
	Reverse    key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding
	Refresh    key.Binding
	ShowStats  key.Binding
	Help       key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

var keys = keyMap{
	NextTable: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next table"),
	),
	PrevTable: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "previous table"),
	),
	NextOrder: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "cycle index order"),
	),
	Reverse: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reverse order"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("pgdown", "n"),
		key.WithHelp("pgdn/n", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("pgup", "p"),
		key.WithHelp("pgup/p", "previous page"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "reload"),
	),
	ShowStats: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "show stats"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTable, k.NextOrder, k.NextPage, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTable, k.PrevTable, k.NextOrder, k.Reverse},
		{k.ScrollUp, k.ScrollDown, k.NextPage, k.PrevPage},
		{k.Refresh, k.ShowStats, k.Help, k.Quit},
	}
}
