// Package report aggregates run outcomes into a summary an operator can act
// on: per-phase counters, residual resources found by validation, and a
// rough monthly-cost estimate of what was removed.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/yairfalse/purku/destroy"
	"github.com/yairfalse/purku/types"
)

// Status is the overall verdict of a run.
type Status string

const (
	StatusClean   Status = "clean"   // everything destroyed or deferred
	StatusPartial Status = "partial" // at least one failure, run continued
	StatusAborted Status = "aborted" // run timeout or cancellation cut it short
	StatusPlanned Status = "planned" // dry run, nothing mutated
)

// Counters tallies outcomes for one phase or for the whole run.
type Counters struct {
	Planned      int `json:"planned"`
	Destroyed    int `json:"destroyed"`
	LazyDeferred int `json:"lazy_deferred"`
	AlreadyGone  int `json:"already_gone"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
}

// AddOutcome records one successful destruction attempt.
func (c *Counters) AddOutcome(outcome destroy.Outcome) {
	switch outcome {
	case destroy.OutcomeDestroyed:
		c.Destroyed++
	case destroy.OutcomeLazyDeferred:
		c.LazyDeferred++
	case destroy.OutcomeAlreadyGone:
		c.AlreadyGone++
	}
}

func (c *Counters) merge(other Counters) {
	c.Planned += other.Planned
	c.Destroyed += other.Destroyed
	c.LazyDeferred += other.LazyDeferred
	c.AlreadyGone += other.AlreadyGone
	c.Failed += other.Failed
	c.Skipped += other.Skipped
}

// Attempted is the number of resources the run actually touched.
func (c Counters) Attempted() int {
	return c.Destroyed + c.LazyDeferred + c.AlreadyGone + c.Failed
}

// PhaseReport is one phase's slice of the run.
type PhaseReport struct {
	Order  int          `json:"order"`
	Family types.Family `json:"family"`
	Name   string       `json:"name"`
	Counters
}

// Residual is a resource still present after the run, found by validation.
type Residual struct {
	Family types.Family `json:"family"`
	ID     string       `json:"id"`
	Reason string       `json:"reason,omitempty"`
}

// Report is the full run summary.
type Report struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Duration     string    `json:"duration"`
	DryRun       bool      `json:"dry_run"`
	Force        bool      `json:"force"`
	CrossAccount bool      `json:"cross_account"`
	Accounts     []string  `json:"accounts"`

	Phases []*PhaseReport `json:"phases"`
	Totals Counters       `json:"totals"`
	Status Status         `json:"status"`

	Residuals []Residual `json:"residuals,omitempty"`

	// EstimatedMonthlySavings is a ballpark in USD, for the run summary
	// line. Not a billing-grade number.
	EstimatedMonthlySavings float64 `json:"estimated_monthly_savings"`

	ClosedAccounts []string `json:"closed_accounts,omitempty"`
	Aborted        bool     `json:"-"`
}

// New starts a report for a run with the given flags.
func New(dryRun, force, crossAccount bool, accounts []string) *Report {
	return &Report{
		StartedAt:    time.Now(),
		DryRun:       dryRun,
		Force:        force,
		CrossAccount: crossAccount,
		Accounts:     accounts,
	}
}

// Phase registers a phase and returns its counter sink. Called once per
// phase in execution order.
func (r *Report) Phase(order int, family types.Family, name string) *PhaseReport {
	phase := &PhaseReport{Order: order, Family: family, Name: name}
	r.Phases = append(r.Phases, phase)
	return phase
}

// Finish stamps the end time and derives totals and status.
func (r *Report) Finish() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()

	r.Totals = Counters{}
	for _, phase := range r.Phases {
		r.Totals.merge(phase.Counters)
	}

	switch {
	case r.DryRun:
		r.Status = StatusPlanned
	case r.Aborted:
		r.Status = StatusAborted
	case r.Totals.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusClean
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
