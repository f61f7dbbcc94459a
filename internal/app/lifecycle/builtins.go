package lifecycle

import (
	"io"

	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	deferrerplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/deferrer"
	interrupterplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/interrupter"
	lastfailedplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/lastfailed"
	metricsplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/metrics"
	reporterplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/reporter"
	rerunnerplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/rerunner"
	slicerplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/slicer"
)

// Builtins returns fresh descriptors for the built-in plugins in declaration
// order, with extra plugins declared ahead of the reporter. The reporter comes
// last so every other cleanup handler has added its summary lines before the
// summary is printed. The reporter writes to out; the deferrer drains queue.
func Builtins(out io.Writer, queue *deferrerplugin.Queue, extra ...*plugin.Config) []*plugin.Config {
	cfgs := []*plugin.Config{
		deferrerplugin.New(queue),
		rerunnerplugin.New(),
		lastfailedplugin.New(),
		slicerplugin.New(),
		interrupterplugin.New(),
		metricsplugin.New(nil),
	}
	cfgs = append(cfgs, extra...)
	return append(cfgs, reporterplugin.New(out))
}
