package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/scenery/internal/app/lifecycle"
	"github.com/alexisbeaulieu97/scenery/internal/config"
)

func newPluginsCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List plugins in activation order with their configured state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPlugins(cmd.OutOrStdout(), root.configPath)
		},
	}

	cmd.AddCommand(newPluginToggleCmd(root, "enable", true))
	cmd.AddCommand(newPluginToggleCmd(root, "disable", false))
	return cmd
}

func listPlugins(out io.Writer, configPath string) error {
	svc := lifecycle.NewService(lifecycle.WithOutput(out))
	prepared, err := svc.Prepare(configPath)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer prepared.Close()

	ordered, err := prepared.Registry.Ordered()
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	position := make(map[string]int, len(ordered))
	for i, cfg := range ordered {
		position[cfg.Name] = i + 1
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ORDER\tNAME\tENABLED\tDEPENDS ON\tDESCRIPTION")
	for _, cfg := range prepared.Registry.Configs() {
		order := "-"
		if n, ok := position[cfg.Name]; ok {
			order = fmt.Sprint(n)
		}
		deps := "-"
		if len(cfg.DependsOn) > 0 {
			deps = strings.Join(cfg.DependsOn, ",")
		}
		fmt.Fprintf(writer, "%s\t%s\t%t\t%s\t%s\n", order, cfg.Name, cfg.Enabled, deps, cfg.Description)
	}
	return writer.Flush()
}

func newPluginToggleCmd(root *rootFlags, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <plugin>",
		Short: fmt.Sprintf("%s a plugin in the project configuration", strings.ToUpper(verb[:1])+verb[1:]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := togglePlugin(root.configPath, args[0], enabled)
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plugin %s %sd in %s\n", args[0], verb, path)
			return nil
		},
	}
}

// togglePlugin writes plugins.<name>.enabled and checks that the result still
// configures. A configuration that no longer validates is rolled back.
func togglePlugin(configPath, name string, enabled bool) (string, error) {
	svc := lifecycle.NewService(lifecycle.WithOutput(io.Discard))
	prepared, err := svc.Prepare(configPath)
	if err != nil {
		return "", err
	}
	_, known := prepared.Registry.Get(name)
	path := prepared.Path
	if err := prepared.Close(); err != nil {
		return "", err
	}
	if !known {
		return "", fmt.Errorf("unknown plugin %q", name)
	}
	if path == "" {
		path = config.DefaultFileName
	}

	original, readErr := os.ReadFile(path)
	if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
		return "", readErr
	}
	if err := config.SetPluginEnabled(path, name, enabled); err != nil {
		return "", err
	}

	check, err := svc.Prepare(path)
	if err != nil {
		if readErr == nil {
			_ = os.WriteFile(path, original, 0o644)
		} else {
			_ = os.Remove(path)
		}
		return "", err
	}
	return path, check.Close()
}
