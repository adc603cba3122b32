package task

import (
	"time"

	"github.com/airtide/airtide/engine/core"
)

// WildcardID selects all workflows or all runs in identity filter positions.
const WildcardID = "~"

// TimeRange is a two-sided inclusive range; either bound may be absent.
type TimeRange struct {
	GTE *time.Time
	LTE *time.Time
}

func (r TimeRange) IsZero() bool {
	return r.GTE == nil && r.LTE == nil
}

// FloatRange is a two-sided inclusive range over float columns.
type FloatRange struct {
	GTE *float64
	LTE *float64
}

func (r FloatRange) IsZero() bool {
	return r.GTE == nil && r.LTE == nil
}

// ListFilter is the composed read predicate. Array fields follow nil/empty
// semantics: a nil slice applies no constraint, a non-nil empty slice matches
// nothing. Limit <= 0 disables pagination (the batch read path).
type ListFilter struct {
	// WorkflowID / RunID are exact matches; WildcardID or empty selects all.
	WorkflowID string
	RunID      string
	// WorkflowIDs is the batch-path array filter over workflow ids.
	WorkflowIDs []string

	LogicalDate TimeRange
	StartedAt   TimeRange
	EndedAt     TimeRange
	Duration    FloatRange

	// States entries are nil for the unset sentinel (see NormalizeStates).
	States []*core.StatusType
	Pools  []string
	Queues []string

	Offset int
	Limit  int
}
