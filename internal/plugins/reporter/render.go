package reporterplugin

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/scenery/internal/model"
)

const (
	iconPassed  = "✔"
	iconFailed  = "✗"
	iconSkipped = "○"
)

type styles struct {
	plain     lipgloss.Style
	passed    lipgloss.Style
	failed    lipgloss.Style
	skipped   lipgloss.Style
	namespace lipgloss.Style
	muted     lipgloss.Style
	summary   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		plain:     r.NewStyle(),
		passed:    r.NewStyle().Foreground(lipgloss.Color("2")),
		failed:    r.NewStyle().Foreground(lipgloss.Color("1")),
		skipped:   r.NewStyle().Foreground(lipgloss.Color("8")),
		namespace: r.NewStyle().Foreground(lipgloss.Color("4")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		summary:   r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// printer renders reported scenarios and the final summary.
type printer struct {
	out    io.Writer
	styles styles
	opts   Options

	namespace string
	started   bool
}

func (p *printer) scenario(result model.Result) {
	scenario := result.Scenario()
	p.header(scenario)

	line := " " + p.icon(result.Status()) + " " + p.styleFor(result.Status()).Render(scenario.Subject())
	if result.IsSkipped() {
		if reason := scenario.SkipReason(); reason != "" {
			line += " " + p.styles.muted.Render("["+reason+"]")
		}
		fmt.Fprintln(p.out, line)
		return
	}

	if aggregated, ok := result.(*model.AggregatedResult); ok {
		line += " " + p.styles.muted.Render(fmt.Sprintf("(%d runs)", len(aggregated.ScenarioResults())))
	}
	if p.opts.ShowTimings {
		line += " " + p.styles.muted.Render(formatElapsed(result.Elapsed()))
	}
	fmt.Fprintln(p.out, line)

	if !result.IsFailed() {
		return
	}
	if p.opts.ShowPaths {
		fmt.Fprintln(p.out, "   "+p.styles.muted.Render("> "+scenario.RelPath()))
	}
	for _, step := range result.StepResults() {
		p.step(step)
	}
	if p.opts.ShowScope {
		p.scope(result.Scope())
	}
}

func (p *printer) header(scenario *model.VirtualScenario) {
	namespace := scenario.Namespace()
	if namespace == "" {
		namespace = path.Dir(scenario.RelPath())
	}
	if p.started && namespace == p.namespace {
		return
	}
	p.started = true
	p.namespace = namespace
	fmt.Fprintln(p.out, p.styles.namespace.Render("* "+namespace))
}

func (p *printer) step(result *model.StepResult) {
	status := model.ScenarioPassed
	if result.IsFailed() {
		status = model.ScenarioFailed
	}
	line := "   " + p.icon(status) + " " + p.styleFor(status).Render(result.Step().Name())
	if p.opts.ShowTimings {
		line += " " + p.styles.muted.Render(formatElapsed(result.Elapsed()))
	}
	fmt.Fprintln(p.out, line)

	if info := result.ExcInfo(); info != nil {
		for _, msg := range strings.Split(info.Message(), "\n") {
			fmt.Fprintln(p.out, "     "+p.styles.failed.Render("|> "+msg))
		}
	}
}

func (p *printer) scope(scope map[string]any) {
	if len(scope) == 0 {
		return
	}
	keys := make([]string, 0, len(scope))
	for key := range scope {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintln(p.out, "   "+p.styles.muted.Render("scope:"))
	for _, key := range keys {
		fmt.Fprintln(p.out, "     "+p.styles.muted.Render(fmt.Sprintf("%s: %v", key, scope[key])))
	}
}

func (p *printer) summary(report *model.Report) {
	style := p.styles.summary
	switch {
	case report.Failed() > 0 || report.Interrupted() != nil:
		style = p.styles.failed
	case report.Passed() > 0:
		style = p.styles.passed
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, style.Render(fmt.Sprintf("# %d scenarios, %d passed, %d failed, %d skipped (%s)",
		report.Total(), report.Passed(), report.Failed(), report.Skipped(), formatSeconds(report.Elapsed()))))
	for _, line := range report.Summary() {
		fmt.Fprintln(p.out, style.Render(line))
	}
	if info := report.Interrupted(); info != nil {
		fmt.Fprintln(p.out, p.styles.failed.Render("! run was interrupted: "+info.Message()))
	}
}

func (p *printer) icon(status model.ScenarioStatus) string {
	switch status {
	case model.ScenarioPassed:
		return p.styles.passed.Render(iconPassed)
	case model.ScenarioFailed:
		return p.styles.failed.Render(iconFailed)
	default:
		return p.styles.skipped.Render(iconSkipped)
	}
}

func (p *printer) styleFor(status model.ScenarioStatus) lipgloss.Style {
	switch status {
	case model.ScenarioFailed:
		return p.styles.failed
	case model.ScenarioSkipped:
		return p.styles.skipped
	default:
		return p.styles.plain
	}
}

func formatElapsed(d time.Duration) string {
	return "(" + formatSeconds(d) + ")"
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
