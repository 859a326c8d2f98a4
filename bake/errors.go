package bake

import (
	"errors"
	"fmt"
)

// Bake stages, in pipeline order.
const (
	StageConfig    = "config"
	StageGeometry  = "geometry"
	StageRasterize = "rasterize"
	StageCompact   = "compact"
	StageRegions   = "regions"
	StageContours  = "contours"
	StagePolyMesh  = "polymesh"
	StageDetail    = "detail"
	StageSerialize = "serialize"
	StageWrite     = "write"
)

// StageError names the bake stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("bake %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage of a bake error, or "" when err did not
// come from a bake.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
