package lpv

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/event"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/profiler"
)

// RenderContext carries the collaborators every render component is built with.
// Events, Profiler, Executor and Logger are optional.
type RenderContext struct {
	Backend  Backend
	Events   *event.Queue
	Profiler *profiler.Profiler
	Executor framegraph.Executor
	Config   gi.Config
	Logger   *slog.Logger
}

// Log returns the context logger, or the package logger when none is set.
func (c RenderContext) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return common.Logger()
}
