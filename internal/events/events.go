package events

import (
	"github.com/spf13/pflag"

	"github.com/alexisbeaulieu97/scenery/internal/config"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
)

// Kind names a lifecycle point. Handlers are registered per kind.
type Kind string

const (
	// KindConfigLoaded fires once the configuration document is decoded.
	KindConfigLoaded Kind = "config.loaded"
	// KindArgParse lets plugins register their command line flags.
	KindArgParse Kind = "arg.parse"
	// KindArgParsed lets plugins read the parsed flag values.
	KindArgParsed Kind = "arg.parsed"
	// KindStartup fires after discovery, before the first scenario runs.
	KindStartup Kind = "startup"

	KindScenarioRun      Kind = "scenario.run"
	KindScenarioSkipped  Kind = "scenario.skipped"
	KindScenarioPassed   Kind = "scenario.passed"
	KindScenarioFailed   Kind = "scenario.failed"
	KindScenarioReported Kind = "scenario.reported"

	KindStepRun    Kind = "step.run"
	KindStepPassed Kind = "step.passed"
	KindStepFailed Kind = "step.failed"

	// KindCleanup fires last, always, with the final or partial report.
	KindCleanup Kind = "cleanup"
)

// Event is an immutable message fired on the bus.
type Event interface {
	Kind() Kind
}

type ConfigLoadedEvent struct {
	Path   string
	Config *config.Config
}

func (ConfigLoadedEvent) Kind() Kind { return KindConfigLoaded }

// ArgParseEvent carries the flag set before parsing.
type ArgParseEvent struct {
	Flags *pflag.FlagSet
}

func (ArgParseEvent) Kind() Kind { return KindArgParse }

// ArgParsedEvent carries the flag set after parsing.
type ArgParsedEvent struct {
	Flags *pflag.FlagSet
}

func (ArgParsedEvent) Kind() Kind { return KindArgParsed }

// StartupEvent exposes the scheduler so plugins can skip, ignore or reorder
// scenarios before the run begins.
type StartupEvent struct {
	Scheduler scheduler.Scheduler
}

func (StartupEvent) Kind() Kind { return KindStartup }

type ScenarioRunEvent struct {
	Result *model.ScenarioResult
}

func (ScenarioRunEvent) Kind() Kind { return KindScenarioRun }

type ScenarioSkippedEvent struct {
	Result *model.ScenarioResult
}

func (ScenarioSkippedEvent) Kind() Kind { return KindScenarioSkipped }

type ScenarioPassedEvent struct {
	Result *model.ScenarioResult
}

func (ScenarioPassedEvent) Kind() Kind { return KindScenarioPassed }

type ScenarioFailedEvent struct {
	Result *model.ScenarioResult
}

func (ScenarioFailedEvent) Kind() Kind { return KindScenarioFailed }

// ScenarioReportedEvent fires once per logical scenario with the resolved
// result, after every execution of it has finished.
type ScenarioReportedEvent struct {
	Result model.Result
}

func (ScenarioReportedEvent) Kind() Kind { return KindScenarioReported }

type StepRunEvent struct {
	Result *model.StepResult
}

func (StepRunEvent) Kind() Kind { return KindStepRun }

type StepPassedEvent struct {
	Result *model.StepResult
}

func (StepPassedEvent) Kind() Kind { return KindStepPassed }

type StepFailedEvent struct {
	Result *model.StepResult
}

func (StepFailedEvent) Kind() Kind { return KindStepFailed }

type CleanupEvent struct {
	Report *model.Report
}

func (CleanupEvent) Kind() Kind { return KindCleanup }
