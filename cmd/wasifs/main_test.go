package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/vfs"
)

func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	dir := sandbox(t)

	out, err := execute(t, "inspect", "--preopen", dir)
	if err != nil {
		t.Fatalf("inspect failed: %v\n%s", err, out)
	}
	for _, want := range []string{"fd 3", "directory", dir, "path_open", "fd_prestat_get"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspect_MissingPreopen(t *testing.T) {
	if _, err := execute(t, "inspect", "--preopen", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing preopen")
	}
}

func TestStat(t *testing.T) {
	dir := sandbox(t)
	metrics := filepath.Join(t.TempDir(), "metrics.prom")

	out, err := execute(t, "stat", "--preopen", dir, "--metrics-file", metrics, "a.txt", "sub/b.txt")
	if err != nil {
		t.Fatalf("stat failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "size   5") || !strings.Contains(out, "size   6") {
		t.Errorf("unexpected sizes:\n%s", out)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), "wasifs_operations_total") {
		t.Errorf("metrics file missing counter:\n%s", data)
	}
}

func TestStat_Missing(t *testing.T) {
	dir := sandbox(t)

	out, err := execute(t, "stat", "--preopen", dir, "a.txt", "nope")
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(out, "nope: noent") {
		t.Errorf("output = %q", out)
	}
}

func run(t *testing.T, m *browseModel, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		_, cmd = m.Update(msg)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowse(t *testing.T) {
	fs, err := vfs.New([]string{sandbox(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Shutdown()

	m := newBrowseModel(fs, 3)
	run(t, m, m.Init())
	if m.err != nil {
		t.Fatalf("list failed: %v", m.err)
	}
	if len(m.entries) != 2 || m.entries[0].name != "a.txt" || m.entries[1].filetype != abi.FiletypeDirectory {
		t.Fatalf("entries = %+v", m.entries)
	}

	// Enter the subdirectory.
	_, cmd := m.Update(key("j"))
	run(t, m, cmd)
	_, cmd = m.Update(key("enter"))
	run(t, m, cmd)
	if len(m.stack) != 2 || len(m.entries) != 1 || m.entries[0].name != "b.txt" {
		t.Fatalf("after enter: stack=%+v entries=%+v err=%v", m.stack, m.entries, m.err)
	}
	sub := m.current().fd

	// Stat the file.
	_, cmd = m.Update(key("enter"))
	run(t, m, cmd)
	if m.state != stateStat || m.stat.Size != 6 {
		t.Fatalf("stat state=%d size=%d err=%v", m.state, m.stat.Size, m.err)
	}
	if !strings.Contains(m.View(), "b.txt") {
		t.Error("view should name the file")
	}

	// Leave the stat view, then the subdirectory.
	m.Update(key("backspace"))
	_, cmd = m.Update(key("backspace"))
	run(t, m, cmd)
	if len(m.stack) != 1 || len(m.entries) != 2 {
		t.Fatalf("after up: stack=%+v entries=%+v", m.stack, m.entries)
	}
	if _, err := fs.Fdstat(sub); err == nil {
		t.Error("leaving a directory should close its descriptor")
	}
}

func TestBrowse_Goto(t *testing.T) {
	fs, err := vfs.New([]string{sandbox(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Shutdown()

	m := newBrowseModel(fs, 3)
	run(t, m, m.Init())

	m.Update(key("g"))
	for _, r := range "../x" {
		m.Update(key(string(r)))
	}
	_, cmd := m.Update(key("enter"))
	run(t, m, cmd)
	if abi.ToErrno(m.err) != abi.ErrnoNotcapable {
		t.Errorf("escaping goto err = %v, want notcapable", m.err)
	}
	if len(m.stack) != 1 {
		t.Errorf("stack = %+v", m.stack)
	}
}
