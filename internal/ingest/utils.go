package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joseph-ayodele/syllabus-templates/constants"
)

// DefaultInclude matches every supported document anywhere below the root.
var DefaultInclude = []string{"**/*.{xlsx,xlsm,xltx,docx,dotx}"}

// AllowedExt checks if a file extension is one the reader understands.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// SessionIDFor derives a stable session id from the absolute path, so
// re-ingesting the same file replaces its previous candidates.
func SessionIDFor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return "fs-" + hex.EncodeToString(sum[:16]), nil
}

// Matcher filters slash-separated relative paths with doublestar patterns.
type Matcher struct {
	patterns []string
}

func NewMatcher(patterns []string) (*Matcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultInclude
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	return &Matcher{patterns: patterns}, nil
}

// Match reports whether rel (relative to the root) is included and readable.
func (m *Matcher) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !AllowedExt(filepath.Ext(rel)) {
		return false
	}
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
