// Package workspace provides an isolated, auto-cleaned filesystem scope
// for one pipeline run. A workspace is exclusively owned: no two runs
// share one, and Remove deletes the directory and everything in it on
// every exit path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Known media extensions, checked in order during Scan. Keeping the list
// ordered makes artifact discovery deterministic when the collaborator
// cannot report the produced filename.
var mediaExtensions = []string{".mp4", ".mkv", ".webm", ".m4a", ".mp3"}

type Workspace struct {
	dir string
}

// New creates a fresh directory for one run under root (os.TempDir when
// root is empty). The run id keeps directories attributable in crash dumps.
func New(root, runID string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, "courier-"+runID+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string { return filepath.Join(w.dir, name) }

// Scan finds the downloaded artifact when the collaborator did not report
// its path: the lexicographically first file with a known media extension.
func (w *Workspace) Scan() (string, bool) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, ext := range mediaExtensions {
		for _, name := range names {
			if strings.EqualFold(filepath.Ext(name), ext) {
				return filepath.Join(w.dir, name), true
			}
		}
	}
	return "", false
}

// Remove tears the workspace down. Safe to call more than once; intended
// to be deferred by the run owner so cleanup happens on success, failure,
// and panic unwinding alike.
func (w *Workspace) Remove() error {
	if w.dir == "" {
		return nil
	}
	err := os.RemoveAll(w.dir)
	w.dir = ""
	return err
}
