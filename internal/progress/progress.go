// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress reports pipeline progress to a writer. Stages publish
// fractions in [0, 1]; the reporter clamps them, drops regressions and
// sub-percent updates within a stage, and maps per-stage fractions into the
// run-wide window each stage owns.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Indeterminate marks an update that carries a message but no new fraction.
const Indeterminate = -1.0

// minStep is the smallest fraction increase reported within a stage.
const minStep = 0.01

// Reporter serializes progress lines to a writer.
type Reporter struct {
	mu           sync.Mutex
	w            io.Writer
	lastStage    string
	lastFraction float64
}

// NewReporter writes progress to w. A nil writer discards everything.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w, lastFraction: -1.0}
}

// Report publishes one update. Pass Indeterminate to keep the last fraction.
func (r *Reporter) Report(stage, message string, fraction float64) {
	r.report(stage, message, fraction, false)
}

// Force publishes an update even when the suppression rules would drop it.
func (r *Reporter) Force(stage, message string, fraction float64) {
	r.report(stage, message, fraction, true)
}

func (r *Reporter) report(stage, message string, fraction float64, force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fraction != Indeterminate {
		if fraction < 0.0 {
			fraction = 0.0
		}
		if fraction > 1.0 {
			fraction = 1.0
		}
		if !force && stage == r.lastStage {
			if fraction <= r.lastFraction {
				return
			}
			if fraction-r.lastFraction < minStep {
				return
			}
		}
		r.lastFraction = fraction
	}
	r.lastStage = stage

	if message == "" {
		return
	}
	if fraction == Indeterminate {
		fmt.Fprintf(r.w, "[%-8s     ] %s\n", stage, message)
		return
	}
	fmt.Fprintf(r.w, "[%-8s %3.0f%%] %s\n", stage, fraction*100, message)
}

// Stage adapts the reporter to a component callback, mapping the component's
// [0, 1] fractions into the [lo, hi] slice of the whole run.
func (r *Reporter) Stage(stage string, lo, hi float64) func(message string, fraction float64) {
	return func(message string, fraction float64) {
		if fraction == Indeterminate {
			r.Report(stage, message, Indeterminate)
			return
		}
		r.Report(stage, message, lo+(hi-lo)*fraction)
	}
}
