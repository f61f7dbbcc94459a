package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/scenery/internal/app/lifecycle"
	"github.com/alexisbeaulieu97/scenery/internal/config"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/runner"
)

type runOptions struct {
	ConfigPath string
	LogLevel   string
	Args       []string
}

var runCmdRunner = runScenarios

func newRunCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Discover and run scenarios",
		Long: "Discover and run scenarios. Flags after run are declared by the enabled plugins;\n" +
			"use `scenery run --help` to list them.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := splitRootArgs(args, runOptions{ConfigPath: root.configPath, LogLevel: root.logLevel})
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()
			return runCmdRunner(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	return cmd
}

// splitRootArgs pulls the root flags out of the raw run arguments. Plugin
// flags are only known once plugins are activated, so run parses nothing
// else itself.
func splitRootArgs(args []string, opts runOptions) (runOptions, error) {
	targets := map[string]*string{
		"--config":    &opts.ConfigPath,
		"-c":          &opts.ConfigPath,
		"--log-level": &opts.LogLevel,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			opts.Args = append(opts.Args, args[i:]...)
			break
		}
		name, value, hasValue := strings.Cut(arg, "=")
		target, ok := targets[name]
		if !ok {
			opts.Args = append(opts.Args, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("flag needs an argument: %s", name)
			}
			i++
			value = args[i]
		}
		*target = value
	}
	return opts, nil
}

// notifyContext cancels the returned context on SIGINT or SIGTERM with a
// cause the runner treats as an interrupt.
func notifyContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-signals:
			if sig == syscall.SIGTERM {
				cancel(runner.ErrTerminated)
				return
			}
			cancel(runner.ErrInterrupted)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(signals)
		close(done)
		cancel(nil)
	}
}

func runScenarios(ctx context.Context, stdout, stderr io.Writer, opts runOptions) error {
	cfg, _, err := lifecycle.LoadConfig(opts.ConfigPath)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	log, err := newLogger(cfg, opts.LogLevel, stderr)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	ctx = logger.WithCorrelationID(ctx, logger.NewCorrelationID())

	svc := lifecycle.NewService(lifecycle.WithLogger(log), lifecycle.WithOutput(stdout))
	prepared, err := svc.Prepare(opts.ConfigPath)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer func() {
		if err := prepared.Close(); err != nil {
			log.Error(err, "close storage")
		}
	}()

	outcome, err := svc.Run(ctx, lifecycle.RunRequest{Prepared: prepared, Args: opts.Args})
	if outcome == nil {
		return runExit(nil, err)
	}
	return runExit(outcome.Report, err)
}

// newLogger builds the CLI logger. Human readable output defaults to on when
// stderr is a terminal.
func newLogger(cfg *config.Config, levelOverride string, stderr io.Writer) (*logger.Logger, error) {
	level := cfg.Log.Level
	if levelOverride != "" {
		level = levelOverride
	}

	human := isTerminal(stderr)
	if cfg.Log.HumanReadable != nil {
		human = *cfg.Log.HumanReadable
	}

	log, err := logger.New(logger.Options{Level: level, HumanReadable: human, Writer: stderr})
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return log, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
