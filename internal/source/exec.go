package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// execResult captures stdout/stderr emitted by a command run.
type execResult struct {
	Stdout string
	Stderr string
}

// runStreaming tees the command's output to out while collecting it for
// later inspection.
func runStreaming(cmd *exec.Cmd, out io.Writer) (execResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = io.MultiWriter(out, &stdoutBuf)
	cmd.Stderr = io.MultiWriter(out, &stderrBuf)

	err := cmd.Run()

	return execResult{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}, err
}

// primaryOutput returns stderr if present, otherwise stdout.
func primaryOutput(res execResult) string {
	if res.Stderr != "" {
		return res.Stderr
	}
	return res.Stdout
}

func determineShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}

	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}

	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}

	return "", nil, fmt.Errorf("no suitable shell found")
}

// buildEnv layers the scope values, then the step's own env, over the
// process environment. Later entries win.
func buildEnv(scope map[string]any, custom map[string]string) []string {
	env := os.Environ()
	for _, key := range sortedKeys(scope) {
		if !isEnvName(key) {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%v", key, scope[key]))
	}
	for _, key := range sortedKeys(custom) {
		env = append(env, fmt.Sprintf("%s=%s", key, custom[key]))
	}
	return env
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
