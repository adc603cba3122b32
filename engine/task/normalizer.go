package task

import "github.com/airtide/airtide/engine/core"

// StateTokenNone is the reserved filter token requesting instances with no
// recorded state. It is filter vocabulary, not a state value: the matching
// stored state is SQL NULL, represented as a nil *core.StatusType.
const StateTokenNone = "none"

// NormalizeStates maps user-supplied state tokens to canonical states. An
// absent or empty token list applies no state constraint at all. Unknown
// tokens pass through untouched; they match no stored state, which is the
// intended empty-set behavior.
func NormalizeStates(tokens []string) []*core.StatusType {
	if len(tokens) == 0 {
		return nil
	}
	states := make([]*core.StatusType, len(tokens))
	for i, token := range tokens {
		if token == StateTokenNone {
			continue
		}
		state := core.StatusType(token)
		states[i] = &state
	}
	return states
}
