package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/pkg/diff"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = time.Second

func (s *YAMLSource) step(root string, spec stepSpec) *model.VirtualStep {
	return model.NewSuspendingStep(spec.Name, func(ctx context.Context, scope *model.Scope) error {
		res, err := s.execute(ctx, root, spec, spec.Run, scope.Snapshot())
		if err != nil {
			return sceneryerrors.NewExecutionError(spec.Name, err)
		}

		if spec.Expect != nil {
			if err := checkOutput(*spec.Expect, res.Stdout, scope.Snapshot()); err != nil {
				return sceneryerrors.NewExecutionError(spec.Name, err)
			}
		}

		if spec.SaveAs != "" {
			scope.Set(spec.SaveAs, res.Stdout)
		}

		if spec.Defer != "" {
			s.registerDefer(root, spec, scope.Snapshot())
		}
		return nil
	})
}

func (s *YAMLSource) registerDefer(root string, spec stepSpec, snapshot map[string]any) {
	name := spec.Name + " (deferred)"
	if s.deferrer == nil {
		s.logger.WithFields(map[string]any{"step": spec.Name}).Warn("no deferrer configured; dropping deferred command")
		return
	}
	s.deferrer.Defer(name, func(ctx context.Context) error {
		if _, err := s.execute(ctx, root, spec, spec.Defer, snapshot); err != nil {
			return sceneryerrors.NewExecutionError(name, err)
		}
		return nil
	})
}

func (s *YAMLSource) execute(ctx context.Context, root string, spec stepSpec, script string, scope map[string]any) (execResult, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	shell, args, err := determineShell(spec.Shell)
	if err != nil {
		return execResult{}, err
	}
	args = append(args, script)

	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Env = buildEnv(scope, spec.Env)
	cmd.WaitDelay = waitDelay
	cmd.Dir = root
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
		if !filepath.IsAbs(spec.Workdir) {
			cmd.Dir = filepath.Join(root, spec.Workdir)
		}
	}

	s.logger.WithFields(map[string]any{"step": spec.Name, "dir": cmd.Dir}).Debug("running command")

	res, err := runStreaming(cmd, s.output)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) && spec.Timeout > 0 {
				return res, fmt.Errorf("command timed out after %s: %w", spec.Timeout, ctxErr)
			}
			return res, context.Cause(ctx)
		}
		if output := primaryOutput(res); output != "" {
			return res, fmt.Errorf("command failed: %w: %s", err, output)
		}
		return res, fmt.Errorf("command failed: %w", err)
	}
	return res, nil
}

// checkOutput compares trimmed stdout against the expected text after
// substituting ${name} references from the scope.
func checkOutput(expected, stdout string, scope map[string]any) error {
	expected = strings.TrimSpace(os.Expand(expected, func(name string) string {
		if value, ok := scope[name]; ok {
			return fmt.Sprint(value)
		}
		return "${" + name + "}"
	}))
	if out := diff.Lines(expected, stdout); out != "" {
		return fmt.Errorf("unexpected output:\n%s", out)
	}
	return nil
}
