// Package artifact manages the on-disk artifact tree: per-group directories
// for each artifact kind, deterministic timestamped filenames, and exact
// handles so later stages never search for files by pattern.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"specsmith/pkg/logx"
)

// Kind names the artifact directories under each group.
type Kind string

const (
	KindInterview     Kind = "interviews"
	KindDiagram       Kind = "diagrams"
	KindRequirements  Kind = "srsdocs"
	KindDocumentation Kind = "documentation"
)

// Ref is an exact handle to a written artifact. Stages pass Refs forward
// instead of reconstructing paths.
type Ref struct {
	Kind      Kind      `json:"kind"`
	Group     string    `json:"group"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Exists reports whether the referenced file is present on disk.
func (r Ref) Exists() bool {
	if r.Path == "" {
		return false
	}
	info, err := os.Stat(r.Path)
	return err == nil && !info.IsDir()
}

// SafeTitle sanitizes a chat title for use in a filename: path separators
// and whitespace become hyphens and a trailing ".md" is dropped.
func SafeTitle(title string) string {
	s := strings.TrimSuffix(title, ".md")
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		"\t", "-",
		"\n", "-",
	)
	s = replacer.Replace(s)
	s = strings.Trim(s, "-")
	if s == "" {
		s = "untitled"
	}
	return s
}

// Writer persists artifacts under a data root. Written files are never
// modified in place; each write creates a new timestamped file.
type Writer struct {
	dataRoot string
	logger   *logx.Logger
	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewWriter creates an artifact writer rooted at dataRoot.
func NewWriter(dataRoot string) *Writer {
	return &Writer{
		dataRoot: dataRoot,
		logger:   logx.NewLogger("artifact"),
		now:      time.Now,
	}
}

// Path computes the deterministic artifact path for a group, kind, and
// title at the given timestamp.
func (w *Writer) Path(group string, kind Kind, title string, ts time.Time) string {
	filename := fmt.Sprintf("%s-%d.md", SafeTitle(title), ts.Unix())
	return filepath.Join(w.dataRoot, group, string(kind), filename)
}

// Write persists content as a new artifact and returns its exact handle.
func (w *Writer) Write(group string, kind Kind, title, content string) (Ref, error) {
	ts := w.now().UTC()
	path := w.Path(group, kind, title, ts)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Ref{}, fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Ref{}, fmt.Errorf("write artifact %s: %w", path, err)
	}

	w.logger.Info("Wrote %s artifact: %s", kind, path)
	return Ref{Kind: kind, Group: group, Path: path, CreatedAt: ts}, nil
}

// Read returns the content of a referenced artifact.
func Read(ref Ref) (string, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", ref.Path, err)
	}
	return string(data), nil
}
