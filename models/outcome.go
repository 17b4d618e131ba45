package models

import "time"

// Outcome is the result of extracting a single card index. It is either
// Extracted or Failed, never both.
type Outcome interface {
	Position() int
	isOutcome()
}

// Extracted is a successful extraction.
type Extracted struct {
	Index int
	Item  CatalogItem
}

// Position returns the card index.
func (e Extracted) Position() int { return e.Index }

func (Extracted) isOutcome() {}

// Failed is an extraction that produced an ExtractionFailure.
type Failed struct {
	Failure ExtractionFailure
}

// Position returns the card index.
func (f Failed) Position() int { return f.Failure.Index }

func (Failed) isOutcome() {}

// RunState is owned by a single pipeline run.
type RunState struct {
	outcomes  []Outcome
	Processed []ProcessedItem
}

// Record appends outcomes in index order.
func (s *RunState) Record(outcomes ...Outcome) {
	s.outcomes = append(s.outcomes, outcomes...)
}

// Observed is the number of card indices resolved so far.
func (s *RunState) Observed() int {
	return len(s.outcomes)
}

// Outcomes returns a copy of the recorded outcomes.
func (s *RunState) Outcomes() []Outcome {
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// RawItems returns successfully extracted items in index order.
func (s *RunState) RawItems() []CatalogItem {
	items := make([]CatalogItem, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		if e, ok := o.(Extracted); ok {
			items = append(items, e.Item)
		}
	}
	return items
}

// Failures returns extraction failures in index order.
func (s *RunState) Failures() []ExtractionFailure {
	var failures []ExtractionFailure
	for _, o := range s.outcomes {
		if f, ok := o.(Failed); ok {
			failures = append(failures, f.Failure)
		}
	}
	return failures
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	RunID          string
	StartTime      time.Time
	EndTime        time.Time
	CardsObserved  int
	Extracted      int
	Failed         int
	Processed      int
	LoadCycles     int
	RetryCount     int
	FailuresByKind map[FailureKind]int
}
