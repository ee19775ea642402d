// Package history keeps conversation histories inside the model's context
// budget without breaking tool call/result pairing.
package history

import "github.com/fwojciec/relay"

// GraceTurns is how many turns an unanswered tool call survives. A call
// stamped with turn t is evicted once the current turn reaches t+GraceTurns.
const GraceTurns = 2

// Options bounds the output of Enforce. Zero limits are unlimited.
type Options struct {
	MaxMessages int
	MaxTokens   int
	// Turn is the current session turn, used to evict stale tool calls.
	Turn      int
	Estimator Estimator
}

// group is an atomic eviction unit: items[start:end].
type group struct {
	start, end int
	tokens     int
}

func (g group) size() int { return g.end - g.start }

// Enforce returns a history within opts' message and token limits.
//
// Tool results without a preceding call and tool calls left unanswered for
// GraceTurns turns are dropped first. The leading run of system messages is
// always kept. The remaining items are partitioned into groups, where a call
// and its result (with anything issued between them) form one group, and the
// newest groups that fit are kept in their original order. Accepting stops at
// the first group that does not fit.
//
// If the system group alone exceeds a limit, the cleaned history is returned
// without further reduction. The input slice is never modified.
func Enforce(items []relay.Item, opts Options) []relay.Item {
	est := opts.Estimator
	if est == nil {
		est = Chars
	}
	cleaned := dropOrphans(items, opts.Turn)

	sysEnd := 0
	for sysEnd < len(cleaned) && cleaned[sysEnd].Kind() == relay.KindSystem {
		sysEnd++
	}
	sysTokens := Tokens(cleaned[:sysEnd], est)
	if exceeds(sysEnd, opts.MaxMessages) || exceeds(sysTokens, opts.MaxTokens) {
		return cleaned
	}

	groups := partition(cleaned, sysEnd, est)
	messages, tokens := sysEnd, sysTokens
	first := len(groups)
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if exceeds(messages+g.size(), opts.MaxMessages) || exceeds(tokens+g.tokens, opts.MaxTokens) {
			break
		}
		messages += g.size()
		tokens += g.tokens
		first = i
	}
	if first == 0 {
		return cleaned
	}

	out := make([]relay.Item, 0, messages)
	out = append(out, cleaned[:sysEnd]...)
	if first < len(groups) {
		out = append(out, cleaned[groups[first].start:]...)
	}
	return out
}

func exceeds(n, limit int) bool {
	return limit > 0 && n > limit
}

// dropOrphans removes results without a preceding call and calls that have
// outlived their grace period without a result.
func dropOrphans(items []relay.Item, turn int) []relay.Item {
	answered := make(map[string]bool)
	seen := make(map[string]bool)
	keepResult := make(map[int]bool)
	for i, it := range items {
		switch v := it.(type) {
		case relay.ToolCall:
			seen[v.ID] = true
		case relay.ToolResult:
			if seen[v.CallID] && !answered[v.CallID] {
				answered[v.CallID] = true
				keepResult[i] = true
			}
		}
	}

	out := make([]relay.Item, 0, len(items))
	for i, it := range items {
		switch v := it.(type) {
		case relay.ToolCall:
			if !answered[v.ID] && turn-v.Turn >= GraceTurns {
				continue
			}
		case relay.ToolResult:
			if !keepResult[i] {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// partition splits items[from:] into groups. A call opens a span that extends
// to its result; overlapping spans merge, so parallel calls and their results
// form one group.
func partition(items []relay.Item, from int, est Estimator) []group {
	resultAt := make(map[string]int)
	for i := from; i < len(items); i++ {
		if r, ok := items[i].(relay.ToolResult); ok {
			resultAt[r.CallID] = i
		}
	}

	var groups []group
	for i := from; i < len(items); {
		end := i + 1
		for j := i; j < end; j++ {
			if c, ok := items[j].(relay.ToolCall); ok {
				if r, ok := resultAt[c.ID]; ok && r+1 > end {
					end = r + 1
				}
			}
		}
		groups = append(groups, group{start: i, end: end, tokens: Tokens(items[i:end], est)})
		i = end
	}
	return groups
}
