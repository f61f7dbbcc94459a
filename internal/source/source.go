package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Source discovers the scenarios of a project.
type Source interface {
	Discover(ctx context.Context) ([]*model.VirtualScenario, error)
}

// Deferrer accepts cleanup work registered while a scenario runs.
type Deferrer interface {
	Defer(name string, fn func(ctx context.Context) error)
}

// Option customises a YAMLSource.
type Option func(*YAMLSource)

// WithDeferrer sets where `defer` commands are registered. Without one they
// are dropped with a warning.
func WithDeferrer(d Deferrer) Option {
	return func(s *YAMLSource) {
		s.deferrer = d
	}
}

// WithOutput streams command output to w while it is captured.
func WithOutput(w io.Writer) Option {
	return func(s *YAMLSource) {
		if w != nil {
			s.output = w
		}
	}
}

// WithLogger sets the source logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *YAMLSource) {
		s.logger = log
	}
}

// YAMLSource loads scenario files from directories or glob patterns relative
// to the project directory.
type YAMLSource struct {
	projectDir string
	patterns   []string
	deferrer   Deferrer
	output     io.Writer
	logger     *logger.Logger
}

// NewYAMLSource returns a source reading the given entries. Each entry is a
// directory walked for .yml and .yaml files, or a glob pattern.
func NewYAMLSource(projectDir string, patterns []string, opts ...Option) *YAMLSource {
	s := &YAMLSource{
		projectDir: projectDir,
		patterns:   append([]string(nil), patterns...),
		output:     io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover loads every matched file, ordered by relative path. Files whose
// base name starts with an underscore are skipped.
func (s *YAMLSource) Discover(ctx context.Context) ([]*model.VirtualScenario, error) {
	root, err := filepath.Abs(s.projectDir)
	if err != nil {
		return nil, sceneryerrors.NewConfigError("project_dir", err)
	}

	paths, err := s.collect(root)
	if err != nil {
		return nil, err
	}

	var scenarios []*model.VirtualScenario
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := s.load(root, path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}

	s.logger.WithFields(map[string]any{
		"files":     len(paths),
		"scenarios": len(scenarios),
	}).Debug("scenarios discovered")
	return scenarios, nil
}

func (s *YAMLSource) collect(root string) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		if strings.HasPrefix(filepath.Base(path), "_") {
			return
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, pattern := range s.patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, pattern)
		}

		info, err := os.Stat(full)
		if err == nil && info.IsDir() {
			walkErr := filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if path != full && strings.HasPrefix(d.Name(), "_") {
						return filepath.SkipDir
					}
					return nil
				}
				if isScenarioFile(path) {
					add(path)
				}
				return nil
			})
			if walkErr != nil {
				return nil, sceneryerrors.NewConfigError(pattern, walkErr)
			}
			continue
		}

		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, sceneryerrors.NewConfigError(pattern, err)
		}
		if len(matches) == 0 {
			return nil, sceneryerrors.NewConfigError(pattern, fmt.Errorf("no scenario files match"))
		}
		for _, match := range matches {
			if isScenarioFile(match) {
				add(match)
			}
		}
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.ToSlash(paths[i]) < filepath.ToSlash(paths[j])
	})
	return paths, nil
}

func isScenarioFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return true
	default:
		return false
	}
}

func (s *YAMLSource) load(root, path string) ([]*model.VirtualScenario, error) {
	file, err := parseScenarioFile(path)
	if err != nil {
		return nil, sceneryerrors.NewConfigError(path, err)
	}

	rows := file.Params
	total := len(rows)
	if total == 0 {
		rows = []map[string]string{nil}
	}

	scenarios := make([]*model.VirtualScenario, 0, len(rows))
	for i, row := range rows {
		def := model.Definition{
			ProjectDir: root,
			Path:       path,
			Subject:    expand(file.Subject, row),
			Tags:       file.Tags,
			Init:       initScope(file.Vars, row),
		}
		if total > 0 {
			def.TemplateIndex = i + 1
			def.TemplateTotal = total
		}

		steps := make([]*model.VirtualStep, 0, len(file.Steps))
		for _, spec := range file.Steps {
			steps = append(steps, s.step(root, spec))
		}

		scenario, err := model.NewVirtualScenario(def, steps)
		if err != nil {
			return nil, sceneryerrors.NewConfigError(path, err)
		}
		if file.Skip {
			scenario.Skip(file.SkipReason)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// expand substitutes ${name} placeholders from a template row. Unknown names
// are left untouched.
func expand(text string, row map[string]string) string {
	if len(row) == 0 {
		return text
	}
	return os.Expand(text, func(name string) string {
		if value, ok := row[name]; ok {
			return value
		}
		return "${" + name + "}"
	})
}

func initScope(vars, row map[string]string) func(*model.Scope) {
	return func(scope *model.Scope) {
		for _, key := range sortedKeys(vars) {
			scope.Set(key, expand(vars[key], row))
		}
		for _, key := range sortedKeys(row) {
			scope.Set(key, row[key])
		}
	}
}
