package recast

import (
	"fmt"
	"time"
)

type RcLogCategory int

const (
	RC_LOG_PROGRESS RcLogCategory = iota + 1
	RC_LOG_WARNING
	RC_LOG_ERROR
)

func (c RcLogCategory) String() string {
	switch c {
	case RC_LOG_PROGRESS:
		return "progress"
	case RC_LOG_WARNING:
		return "warning"
	case RC_LOG_ERROR:
		return "error"
	}
	return "unknown"
}

type RcTimerLabel int

const (
	RC_TIMER_TOTAL RcTimerLabel = iota
	RC_TIMER_RASTERIZE_TRIANGLES
	RC_TIMER_FILTER_LOW_OBSTACLES
	RC_TIMER_FILTER_BORDER
	RC_TIMER_FILTER_WALKABLE
	RC_TIMER_BUILD_COMPACTHEIGHTFIELD
	RC_TIMER_ERODE_AREA
	RC_TIMER_BUILD_DISTANCEFIELD
	RC_TIMER_BUILD_REGIONS
	RC_TIMER_BUILD_CONTOURS
	RC_TIMER_BUILD_POLYMESH
	RC_TIMER_BUILD_POLYMESHDETAIL
	RC_MAX_TIMERS
)

var timerNames = [RC_MAX_TIMERS]string{
	"total",
	"rasterize triangles",
	"filter low obstacles",
	"filter border",
	"filter walkable",
	"build compact heightfield",
	"erode area",
	"build distance field",
	"build regions",
	"build contours",
	"build polymesh",
	"build polymesh detail",
}

func (l RcTimerLabel) String() string {
	if l < 0 || l >= RC_MAX_TIMERS {
		return "unknown"
	}
	return timerNames[l]
}

// RcLogFunc receives every message the build emits.
type RcLogFunc func(category RcLogCategory, msg string)

// RcContext carries the log sink and the per-stage timers of one build.
// A nil *RcContext is valid and discards everything.
type RcContext struct {
	logFn     RcLogFunc
	startTime [RC_MAX_TIMERS]time.Time
	accTime   [RC_MAX_TIMERS]time.Duration
}

func NewRcContext(logFn RcLogFunc) *RcContext {
	return &RcContext{logFn: logFn}
}

func (ctx *RcContext) Log(category RcLogCategory, format string, v ...any) {
	if ctx == nil || ctx.logFn == nil {
		return
	}
	ctx.logFn(category, fmt.Sprintf(format, v...))
}

func (ctx *RcContext) Progress(format string, v ...any) {
	ctx.Log(RC_LOG_PROGRESS, format, v...)
}

func (ctx *RcContext) Warning(format string, v ...any) {
	ctx.Log(RC_LOG_WARNING, format, v...)
}

func (ctx *RcContext) Errorf(format string, v ...any) {
	ctx.Log(RC_LOG_ERROR, format, v...)
}

func (ctx *RcContext) ResetTimers() {
	if ctx == nil {
		return
	}
	for i := range ctx.accTime {
		ctx.accTime[i] = 0
		ctx.startTime[i] = time.Time{}
	}
}

func (ctx *RcContext) StartTimer(label RcTimerLabel) {
	if ctx == nil {
		return
	}
	ctx.startTime[label] = time.Now()
}

func (ctx *RcContext) StopTimer(label RcTimerLabel) {
	if ctx == nil || ctx.startTime[label].IsZero() {
		return
	}
	ctx.accTime[label] += time.Since(ctx.startTime[label])
	ctx.startTime[label] = time.Time{}
}

// AccumulatedTime returns the total time spent in the labelled stage.
func (ctx *RcContext) AccumulatedTime(label RcTimerLabel) time.Duration {
	if ctx == nil {
		return 0
	}
	return ctx.accTime[label]
}
