package scheduler

import (
	"fmt"
	"time"
)

// WorkImage identifies one source image of the corpus.
type WorkImage struct {
	// Index is the numeric identity shared by the source and its outputs.
	Index int
	// Source is the path handed to the codec for decoding.
	Source string
	// Name is the output file name written under each transform directory.
	Name string
}

// Status is the final state of one work item.
type Status string

const (
	StatusWritten  Status = "written"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Stages at which a work item can fail.
const (
	StageDecode    = "decode"
	StageTransform = "transform"
	StageEncode    = "encode"
)

// ItemError describes a failed work item.
type ItemError struct {
	Index     int
	Transform string
	Stage     string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("image %d: %s %s: %v", e.Index, e.Transform, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ItemResult is the record of one (image, transform) work item.
type ItemResult struct {
	Index     int           `json:"index"`
	Transform string        `json:"transform"`
	Output    string        `json:"output"`
	Status    Status        `json:"status"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration_ns"`
}

// PhaseTimes holds durations summed across all workers.
type PhaseTimes struct {
	Read    time.Duration `json:"read_ns"`
	Process time.Duration `json:"process_ns"`
	Write   time.Duration `json:"write_ns"`
}

// Outcome summarizes a scheduler run.
type Outcome struct {
	Policy  Policy        `json:"-"`
	Images  int           `json:"images"`
	Items   []ItemResult  `json:"items"`
	Phases  PhaseTimes    `json:"phases"`
	Wall    time.Duration `json:"wall_ns"`
	Windows int           `json:"windows,omitempty"`

	Written  int `json:"written"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
}

func (o *Outcome) tally() {
	o.Written, o.Skipped, o.Failed, o.Canceled = 0, 0, 0, 0
	for _, it := range o.Items {
		switch it.Status {
		case StatusWritten:
			o.Written++
		case StatusSkipped:
			o.Skipped++
		case StatusFailed:
			o.Failed++
		case StatusCanceled:
			o.Canceled++
		}
	}
}

// Errors returns the errors of all failed items in item order.
func (o *Outcome) Errors() []error {
	var errs []error
	for _, it := range o.Items {
		if it.Err != nil {
			errs = append(errs, it.Err)
		}
	}
	return errs
}

// Progress receives per-item completion updates. The pipeline's progress
// callbacks satisfy it.
type Progress interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// Throttle reports memory pressure between windows.
type Throttle interface {
	ShouldThrottle() bool
}

// Recorder receives per-item and per-phase observations for metrics.
type Recorder interface {
	ObserveItem(transform string, status Status, d time.Duration)
	ObservePhase(phase string, d time.Duration)
}
