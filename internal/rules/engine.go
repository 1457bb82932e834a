package rules

import (
	"strings"
	"time"

	"backoffice/internal/model"
)

// IDSet is a set of string identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, ignoring blanks.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	if id = strings.TrimSpace(id); id != "" {
		s[id] = struct{}{}
	}
}

// Input is everything one evaluation needs. The engine performs no I/O.
type Input struct {
	ActiveBids      []model.BidRecord
	SubmittedBids   []model.BidRecord
	ExistingTaskIDs IDSet
	KnownSubmitted  IDSet
	Now             time.Time
}

// Result lists new tasks in evaluation order together with per-rule counts.
type Result struct {
	Tasks       []model.Task
	CodeRed     int
	Submitted   int
	Opening     int
	Duplicates  int
	MissingKeys int
	// Confirmed holds source email IDs the submission rule fired for,
	// including ones whose task already existed.
	Confirmed []string
}

// Engine composes the three bid rules.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Evaluate runs every rule and drops tasks whose ID is already known, either
// from ExistingTaskIDs or from earlier in the same batch. Input sets are not
// modified.
func (e *Engine) Evaluate(in Input) Result {
	seen := make(IDSet, len(in.ExistingTaskIDs))
	for id := range in.ExistingTaskIDs {
		seen.Add(id)
	}
	known := make(IDSet, len(in.KnownSubmitted))
	for id := range in.KnownSubmitted {
		known.Add(id)
	}

	var res Result
	emit := func(task model.Task) bool {
		if seen.Has(task.ID) {
			res.Duplicates++
			return false
		}
		seen.Add(task.ID)
		res.Tasks = append(res.Tasks, task)
		return true
	}

	for _, bid := range in.ActiveBids {
		if strings.TrimSpace(bid.SourceEmailID) == "" {
			res.MissingKeys++
			continue
		}
		if task, ok := CodeRed(bid, in.Now, e.opts); ok && emit(task) {
			res.CodeRed++
		}
	}

	for _, bid := range in.SubmittedBids {
		id := strings.TrimSpace(bid.SourceEmailID)
		if id == "" {
			res.MissingKeys++
			continue
		}
		if task, ok := SubmissionConfirmed(bid, known, e.opts); ok {
			known.Add(id)
			res.Confirmed = append(res.Confirmed, id)
			if emit(task) {
				res.Submitted++
			}
		}
		if task, ok := OpeningPressure(bid, in.Now, e.opts); ok && emit(task) {
			res.Opening++
		}
	}

	return res
}
