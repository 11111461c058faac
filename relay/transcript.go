package relay

import (
	"sort"
	"strings"
	"time"

	"training-relay/constant"
	"training-relay/dto"
)

// Accumulator is the in-memory transcript for one relay session. It is only
// touched from the upstream reader goroutine while the session is active and
// from the drain path after the pumps have stopped, so it needs no locking.
type Accumulator struct {
	turns    []dto.TurnSubmission
	partials map[constant.Role]*strings.Builder
	maxTurns int
	dropped  int
}

func NewAccumulator(maxTurns int) *Accumulator {
	return &Accumulator{
		partials: map[constant.Role]*strings.Builder{
			constant.RoleUser:      {},
			constant.RoleAssistant: {},
		},
		maxTurns: maxTurns,
	}
}

// AppendDelta grows the in-progress fragment for a role.
func (a *Accumulator) AppendDelta(role constant.Role, text string) {
	a.partials[role].WriteString(text)
}

// CompleteTurn flushes a role's fragment as a finished turn stamped with its
// capture time. When the completion event carries the full transcript text it
// wins over whatever deltas accumulated, since deltas may have been missed.
func (a *Accumulator) CompleteTurn(role constant.Role, transcript string, capturedAt time.Time) {
	content := transcript
	if content == "" {
		content = a.partials[role].String()
	}
	a.partials[role].Reset()

	if strings.TrimSpace(content) == "" {
		return
	}
	if a.maxTurns > 0 && len(a.turns) >= a.maxTurns {
		a.dropped++
		return
	}

	a.turns = append(a.turns, dto.TurnSubmission{
		Role:       role,
		Content:    content,
		CapturedAt: capturedAt,
	})
}

// FlushPartial turns any unterminated fragments into final turns. Called at
// drain so a disconnect mid-utterance loses nothing that was captured.
func (a *Accumulator) FlushPartial(now time.Time) {
	for _, role := range []constant.Role{constant.RoleUser, constant.RoleAssistant} {
		if a.partials[role].Len() == 0 {
			continue
		}
		a.CompleteTurn(role, "", now)
	}
}

// Turns returns the transcript ordered by capture time with turn_order
// assigned after the sort. Completion events for the two roles arrive
// asynchronously, so arrival order is not trustworthy.
func (a *Accumulator) Turns() []dto.TurnSubmission {
	ordered := make([]dto.TurnSubmission, len(a.turns))
	copy(ordered, a.turns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CapturedAt.Before(ordered[j].CapturedAt)
	})
	for i := range ordered {
		ordered[i].TurnOrder = i
	}
	return ordered
}

// Dropped reports how many completed turns the cap refused.
func (a *Accumulator) Dropped() int {
	return a.dropped
}
