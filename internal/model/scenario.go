package model

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// DefaultScenarioName is used when a definition does not name its scenario.
const DefaultScenarioName = "Scenario"

// Definition describes a loaded scenario before it is wrapped into a
// VirtualScenario. Path may be absolute or relative to ProjectDir.
type Definition struct {
	ProjectDir string
	Path       string
	Name       string
	Subject    string
	Tags       []string

	// TemplateTotal is non-zero for scenarios generated from a parametrised
	// template; TemplateIndex is then the row that produced this scenario.
	TemplateIndex int
	TemplateTotal int

	// Init seeds the runtime scope before the first step runs.
	Init func(scope *Scope)
}

// VirtualScenario wraps a scenario definition with a stable identity and its
// ordered steps.
type VirtualScenario struct {
	def     Definition
	absPath string
	relPath string
	steps   []*VirtualStep

	mu         sync.RWMutex
	skipped    bool
	skipReason string
}

// NewVirtualScenario validates the definition's path and builds the scenario.
func NewVirtualScenario(def Definition, steps []*VirtualStep) (*VirtualScenario, error) {
	if strings.TrimSpace(def.Path) == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if def.Name == "" {
		def.Name = DefaultScenarioName
	}

	projectDir := def.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	projectAbs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve project dir: %v", ErrInvalidPath, err)
	}

	absPath := def.Path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(projectAbs, absPath)
	}
	absPath = filepath.Clean(absPath)

	rel, err := filepath.Rel(projectAbs, absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, def.Path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s is outside project dir %s", ErrInvalidPath, def.Path, projectAbs)
	}

	return &VirtualScenario{
		def:     def,
		absPath: absPath,
		relPath: filepath.ToSlash(rel),
		steps:   append([]*VirtualStep(nil), steps...),
	}, nil
}

// UniqueID is derived from the relative path and the declared name and is
// stable across runs.
func (s *VirtualScenario) UniqueID() string {
	return base64.RawURLEncoding.EncodeToString([]byte(s.identity()))
}

// UniqueHash is a short digest of the identity, handy for file names.
func (s *VirtualScenario) UniqueHash() string {
	// 20-byte blake2b never fails without a key.
	h, _ := blake2b.New(20, nil)
	h.Write([]byte(s.identity()))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *VirtualScenario) identity() string {
	id := s.relPath + "::" + s.def.Name
	if s.def.TemplateTotal > 0 {
		id = fmt.Sprintf("%s#%d", id, s.def.TemplateIndex)
	}
	return id
}

// Path returns the absolute path of the scenario source.
func (s *VirtualScenario) Path() string {
	return s.absPath
}

// RelPath returns the slash-separated path relative to the project dir.
func (s *VirtualScenario) RelPath() string {
	return s.relPath
}

// Name returns the declared scenario name.
func (s *VirtualScenario) Name() string {
	return s.def.Name
}

// Subject is the human-facing title; it defaults to the file stem.
func (s *VirtualScenario) Subject() string {
	if s.def.Subject != "" {
		return s.def.Subject
	}
	base := path.Base(s.relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Namespace is the directory of the scenario below the top-level scenarios
// directory, or "" for scenarios at its root.
func (s *VirtualScenario) Namespace() string {
	dir := path.Dir(s.relPath)
	if dir == "." {
		return ""
	}
	parts := strings.SplitN(dir, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Tags returns a copy of the declared tags.
func (s *VirtualScenario) Tags() []string {
	return append([]string(nil), s.def.Tags...)
}

// TemplateIndex returns the parameter row index and whether the scenario was
// generated from a template.
func (s *VirtualScenario) TemplateIndex() (int, bool) {
	return s.def.TemplateIndex, s.def.TemplateTotal > 0
}

// Steps returns the steps in declared order.
func (s *VirtualScenario) Steps() []*VirtualStep {
	return append([]*VirtualStep(nil), s.steps...)
}

// NewScope instantiates a fresh runtime scope for one execution.
func (s *VirtualScenario) NewScope() *Scope {
	scope := NewScope()
	if s.def.Init != nil {
		s.def.Init(scope)
	}
	return scope
}

// Skip marks the scenario so the runner reports it without running steps.
func (s *VirtualScenario) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = true
	if reason != "" {
		s.skipReason = reason
	}
}

// IsSkipped reports whether Skip was called.
func (s *VirtualScenario) IsSkipped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipped
}

// SkipReason returns the reason passed to Skip, if any.
func (s *VirtualScenario) SkipReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipReason
}

func (s *VirtualScenario) String() string {
	return fmt.Sprintf("VirtualScenario(%s)", s.relPath)
}
