package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/vfs"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newBrowseCommand(opts *options) *cobra.Command {
	var fd uint32

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Walk the filesystem interactively through guest descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("browse needs an interactive terminal")
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.close())
			}()

			p := tea.NewProgram(newBrowseModel(s.fs, fd), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().Uint32Var(&fd, "fd", 3, "Preopened directory to start in")
	return cmd
}

type browseState int

const (
	stateList browseState = iota
	stateStat
	stateGoto
)

// frame is one opened directory. The bottom frame is the preopen and is
// never closed by the browser.
type frame struct {
	name string
	fd   uint32
}

type browseModel struct {
	err      error
	fs       *vfs.Filesystem
	statName string
	stack    []frame
	entries  []entry
	input    textinput.Model
	stat     abi.Filestat
	selected int
	state    browseState
}

type entry struct {
	name     string
	filetype abi.Filetype
}

type listedMsg struct {
	err     error
	entries []entry
}

type openedMsg struct {
	err error
	f   frame
}

type statMsg struct {
	err  error
	name string
	st   abi.Filestat
}

func newBrowseModel(fs *vfs.Filesystem, fd uint32) *browseModel {
	ti := textinput.New()
	ti.Prompt = "path: "
	ti.Placeholder = "sub/dir"
	ti.Width = 40

	name, err := fs.PrestatDirName(fd)
	return &browseModel{
		err:   err,
		fs:    fs,
		stack: []frame{{name: name, fd: fd}},
		input: ti,
		state: stateList,
	}
}

func (m *browseModel) current() frame {
	return m.stack[len(m.stack)-1]
}

func (m *browseModel) Init() tea.Cmd {
	if m.err != nil {
		return nil
	}
	return m.list(m.current().fd)
}

func (m *browseModel) list(fd uint32) tea.Cmd {
	return func() tea.Msg {
		names, err := m.fs.List(fd)
		if err != nil {
			return listedMsg{err: err}
		}
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			ft := abi.FiletypeUnknown
			if st, err := m.fs.StatAt(fd, 0, name); err == nil {
				ft = st.Filetype
			}
			entries = append(entries, entry{name: name, filetype: ft})
		}
		slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.name, b.name) })
		return listedMsg{entries: entries}
	}
}

func (m *browseModel) open(name string) tea.Cmd {
	dir := m.current()
	return func() tea.Msg {
		st, err := m.fs.Fdstat(dir.fd)
		if err != nil {
			return openedMsg{err: err}
		}
		fd, err := m.fs.PathOpen(dir.fd, abi.LookupSymlinkFollow, name, abi.OflagDirectory,
			st.RightsInheriting, st.RightsInheriting, 0)
		if err != nil {
			return openedMsg{err: fmt.Errorf("open %s: %w", name, err)}
		}
		return openedMsg{f: frame{name: path.Join(dir.name, name), fd: fd}}
	}
}

func (m *browseModel) statEntry(name string) tea.Cmd {
	fd := m.current().fd
	return func() tea.Msg {
		st, err := m.fs.StatAt(fd, abi.LookupSymlinkFollow, name)
		return statMsg{name: name, st: st, err: err}
	}
}

func (m *browseModel) closeAll() {
	for len(m.stack) > 1 {
		m.pop()
	}
}

func (m *browseModel) pop() {
	top := m.current()
	m.stack = m.stack[:len(m.stack)-1]
	m.fs.Close(top.fd)
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateGoto {
			return m.updateGoto(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.closeAll()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter", "l":
			switch m.state {
			case stateList:
				if len(m.entries) == 0 {
					break
				}
				e := m.entries[m.selected]
				if e.filetype == abi.FiletypeDirectory {
					return m, m.open(e.name)
				}
				return m, m.statEntry(e.name)
			case stateStat:
				m.state = stateList
			}

		case "s":
			if m.state == stateList && len(m.entries) > 0 {
				return m, m.statEntry(m.entries[m.selected].name)
			}

		case "g":
			if m.state == stateList {
				m.state = stateGoto
				m.input.SetValue("")
				return m, m.input.Focus()
			}

		case "backspace", "h", "esc":
			switch {
			case m.state == stateStat:
				m.state = stateList
			case len(m.stack) > 1:
				m.pop()
				m.err = nil
				return m, m.list(m.current().fd)
			}
		}

	case listedMsg:
		m.err = msg.err
		m.entries = msg.entries
		m.selected = 0

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.stack = append(m.stack, msg.f)
		return m, m.list(msg.f.fd)

	case statMsg:
		m.err = msg.err
		m.stat = msg.st
		m.statName = msg.name
		m.state = stateStat
	}
	return m, nil
}

func (m *browseModel) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.closeAll()
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.state = stateList
		return m, nil
	case "enter":
		m.input.Blur()
		m.state = stateList
		return m, m.open(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browseModel) View() string {
	var b strings.Builder

	dir := m.current()
	b.WriteString(titleStyle.Render("wasifs"))
	b.WriteString(fmt.Sprintf(" %s %s\n\n", dir.name, helpStyle.Render(fmt.Sprintf("(fd %d)", dir.fd))))

	switch m.state {
	case stateList, stateGoto:
		if len(m.entries) == 0 {
			b.WriteString(helpStyle.Render("(empty)"))
			b.WriteString("\n")
		}
		for i, e := range m.entries {
			line := m.formatEntry(e)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + e.name))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if m.state == stateGoto {
			b.WriteString("\n")
			b.WriteString(m.input.View())
			b.WriteString("\n")
		}

	case stateStat:
		b.WriteString(fmt.Sprintf("Filestat of %s:\n\n", fileStyle.Render(m.statName)))
		if m.err == nil {
			st := m.stat
			b.WriteString(fmt.Sprintf("  type   %s\n", st.Filetype))
			b.WriteString(fmt.Sprintf("  ino    %d\n", st.Ino))
			b.WriteString(fmt.Sprintf("  nlink  %d\n", st.Nlink))
			b.WriteString(fmt.Sprintf("  size   %d\n", st.Size))
			b.WriteString(fmt.Sprintf("  mtim   %s\n", formatNanos(st.Mtim)))
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v (%s)", m.err, abi.ToErrno(m.err).Name())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch m.state {
	case stateList:
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • s stat • g go to • ⌫ up • q quit"))
	case stateStat:
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
	case stateGoto:
		b.WriteString(helpStyle.Render("enter open • esc cancel"))
	}
	return b.String()
}

func (m *browseModel) formatEntry(e entry) string {
	if e.filetype == abi.FiletypeDirectory {
		return dirStyle.Render(e.name + "/")
	}
	return fileStyle.Render(e.name)
}
