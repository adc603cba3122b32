package postgres

import (
	"github.com/Masterminds/squirrel"
	"github.com/airtide/airtide/engine/core"
)

// The filter helpers below compose the read predicate. squirrel builders have
// value semantics, so each helper returns a new builder and never mutates its
// input; composition order does not change the final predicate.

// applyArrayFilter constrains col to the given value set. A nil slice applies
// no constraint; a non-nil empty slice renders as a contradiction ((1=0)) and
// matches nothing.
func applyArrayFilter(sb squirrel.SelectBuilder, col string, values []string) squirrel.SelectBuilder {
	if values == nil {
		return sb
	}
	return sb.Where(squirrel.Eq{col: values})
}

// applyRangeFilter adds inclusive bounds on col; each bound is independently
// optional and both absent is a no-op.
func applyRangeFilter[T any](sb squirrel.SelectBuilder, col string, gte, lte *T) squirrel.SelectBuilder {
	if gte != nil {
		sb = sb.Where(squirrel.GtOrEq{col: *gte})
	}
	if lte != nil {
		sb = sb.Where(squirrel.LtOrEq{col: *lte})
	}
	return sb
}

// applyStateFilter constrains col to the normalized state set. Entries that
// are nil select the unset sentinel, which is stored as SQL NULL and must be
// matched with IS NULL rather than equality.
func applyStateFilter(sb squirrel.SelectBuilder, col string, states []*core.StatusType) squirrel.SelectBuilder {
	if states == nil {
		return sb
	}
	if len(states) == 0 {
		return sb.Where("(1=0)")
	}
	conds := make(squirrel.Or, 0, len(states))
	for _, state := range states {
		if state == nil {
			conds = append(conds, squirrel.Eq{col: nil})
			continue
		}
		conds = append(conds, squirrel.Eq{col: *state})
	}
	return sb.Where(conds)
}
