// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporterSuppressesRegressionsWithinStage(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	r.Report("resolve", "starting", 0.10)
	r.Report("resolve", "going backwards", 0.05)
	r.Report("resolve", "tiny step", 0.105)
	r.Report("resolve", "real step", 0.20)

	out := b.String()
	assert.Contains(t, out, "starting")
	assert.NotContains(t, out, "going backwards")
	assert.NotContains(t, out, "tiny step")
	assert.Contains(t, out, "real step")
}

func TestReporterStageChangeResetsSuppression(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	r.Report("resolve", "done resolving", 0.70)
	r.Report("flags", "checking datasets", 0.72)

	assert.Contains(t, b.String(), "checking datasets")
}

func TestReporterForce(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	r.Report("finalize", "assembled", 0.98)
	r.Force("finalize", "assembled again", 0.98)

	assert.Contains(t, b.String(), "assembled again")
}

func TestReporterClampsFraction(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	r.Report("parse", "over", 1.7)
	assert.Contains(t, b.String(), "100%")
}

func TestReporterIndeterminateKeepsFraction(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	r.Report("parse", "entries parsed", 0.18)
	r.Report("parse", "parsing citations", Indeterminate)
	r.Report("parse", "citations parsed", 0.28)

	out := b.String()
	assert.Contains(t, out, "parsing citations")
	assert.Contains(t, out, "citations parsed")
}

func TestStageMapsWindow(t *testing.T) {
	var b strings.Builder
	r := NewReporter(&b)

	cb := r.Stage("resolve", 0.42, 0.70)
	cb("halfway", 0.5)

	assert.Contains(t, b.String(), " 56%")
}

func TestNilWriter(t *testing.T) {
	r := NewReporter(nil)
	r.Report("parse", "message", 0.5)
}
