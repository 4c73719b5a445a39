package chatpod

// BudgetUnit selects how a trim budget is measured.
type BudgetUnit string

const (
	UnitMessages BudgetUnit = "messages"
	UnitTokens   BudgetUnit = "tokens"
)

// TrimPolicy holds the tuning knobs for history trimming.
type TrimPolicy struct {
	// MaxUnits is the budget the trimmed log must fit within.
	MaxUnits int

	// Unit is the measure for MaxUnits. Defaults to UnitMessages.
	Unit BudgetUnit
}

func (p TrimPolicy) withDefaults() TrimPolicy {
	if p.Unit == "" {
		p.Unit = UnitMessages
	}
	return p
}

// cost returns the budget units a single message consumes under the policy.
func (p TrimPolicy) cost(m Message) int {
	if p.Unit == UnitTokens {
		return estimateTokens(m)
	}
	return 1
}

// estimateTokens returns a rough token count for a message. Uses ~4
// characters per token plus a small per-message overhead for role framing.
// The budget is a soft limit to keep the context window bounded, so the
// estimate is intentionally imprecise.
func estimateTokens(m Message) int {
	const charsPerToken = 4
	const perMessageOverhead = 4

	return len(m.Content)/charsPerToken + perMessageOverhead
}

// Trim returns a copy of log whose total size fits within the policy budget.
// The oldest non-system messages are dropped first, a whole user..assistant
// turn at a time, so the result never starts with an assistant message after
// the optional leading system message. The leading system message is always
// retained; if it alone exceeds the budget, Trim returns ErrBudgetTooSmall.
//
// A message that single-handedly exceeds the remaining budget is dropped
// with the rest of its turn, never content-truncated: truncating mid-message
// hands the model a fragment that reads as corruption.
//
// Trim is idempotent and preserves the relative order of retained messages.
func Trim(log *MessageList, policy TrimPolicy) (*MessageList, error) {
	policy = policy.withDefaults()

	rest := log.All()
	trimmed := NewMessageList()
	budget := policy.MaxUnits

	if system, ok := log.LeadingSystem(); ok {
		budget -= policy.cost(system)
		if budget < 0 {
			return nil, ErrBudgetTooSmall
		}
		trimmed.Add(system)
		rest = rest[1:]
	}

	turns := splitTurns(rest)

	total := 0
	for _, turn := range turns {
		for _, m := range turn {
			total += policy.cost(m)
		}
	}

	// Drop whole turns from the oldest end until the remainder fits.
	for len(turns) > 0 && total > budget {
		for _, m := range turns[0] {
			total -= policy.cost(m)
		}
		turns = turns[1:]
	}

	for _, turn := range turns {
		trimmed.Add(turn...)
	}
	return trimmed, nil
}

// splitTurns groups messages into turns, each starting at a user message.
// Messages preceding the first user message form a leading group of their
// own, which makes them the first candidates to drop.
func splitTurns(msgs []Message) [][]Message {
	var turns [][]Message
	for _, m := range msgs {
		if m.Role == RoleUser || len(turns) == 0 {
			turns = append(turns, []Message{m})
			continue
		}
		turns[len(turns)-1] = append(turns[len(turns)-1], m)
	}
	return turns
}
