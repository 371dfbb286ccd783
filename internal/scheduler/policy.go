package scheduler

import (
	"fmt"
	"strings"
)

// Policy selects how work items are spread over the worker pool.
type Policy int

const (
	// PolicyAuto resolves to PolicySections for corpora that fit in one
	// window and to PolicyWindowed otherwise.
	PolicyAuto Policy = iota
	// PolicyFlat runs a parallel loop over images; each worker applies every
	// transform to its image in turn.
	PolicyFlat
	// PolicySections reads the whole corpus, then runs one concurrent stream
	// per transform over all images.
	PolicySections
	// PolicyFanOut decodes images one after another and spawns one task per
	// transform for each; the source is freed when its last task finishes.
	PolicyFanOut
	// PolicyWindowed processes contiguous slices of the corpus end to end,
	// bounding resident buffers by the window size.
	PolicyWindowed
)

var policyNames = map[Policy]string{
	PolicyAuto:     "auto",
	PolicyFlat:     "flat",
	PolicySections: "sections",
	PolicyFanOut:   "fanout",
	PolicyWindowed: "windowed",
}

// PolicyNames lists the accepted policy names.
var PolicyNames = []string{"auto", "flat", "sections", "fanout", "windowed"}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy resolves a policy name. The empty string means auto.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PolicyAuto, nil
	case "flat", "parallel-for":
		return PolicyFlat, nil
	case "sections":
		return PolicySections, nil
	case "fanout", "fan-out", "tasks":
		return PolicyFanOut, nil
	case "windowed", "batched", "window":
		return PolicyWindowed, nil
	default:
		return PolicyAuto, fmt.Errorf("unknown scheduling policy %q (must be one of: %s)",
			s, strings.Join(PolicyNames, ", "))
	}
}

// Resolve replaces PolicyAuto with a concrete policy for a corpus of n
// images. Sections keeps every source resident, so it is only chosen when
// the corpus fits inside one window.
func (p Policy) Resolve(n, batchSize int) Policy {
	if p != PolicyAuto {
		return p
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if n <= batchSize {
		return PolicySections
	}
	return PolicyWindowed
}
