package relay

import (
	"testing"
	"time"

	"training-relay/constant"
)

func TestAccumulatorCaptureOrder(t *testing.T) {
	acc := NewAccumulator(0)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Completion events arrive out of capture order: the assistant's
	// transcription finishes before the user's earlier utterance does.
	acc.CompleteTurn(constant.RoleAssistant, "how are you feeling today", base.Add(2*time.Second))
	acc.CompleteTurn(constant.RoleUser, "hello I need someone to talk to", base)
	acc.CompleteTurn(constant.RoleUser, "not great honestly", base.Add(4*time.Second))

	turns := acc.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}

	wantContent := []string{
		"hello I need someone to talk to",
		"how are you feeling today",
		"not great honestly",
	}
	for i, want := range wantContent {
		if turns[i].Content != want {
			t.Errorf("turn %d: expected %q, got %q", i, want, turns[i].Content)
		}
		if turns[i].TurnOrder != i {
			t.Errorf("turn %d: expected order %d, got %d", i, i, turns[i].TurnOrder)
		}
	}
}

func TestAccumulatorDeltasBuildTurn(t *testing.T) {
	acc := NewAccumulator(0)

	acc.AppendDelta(constant.RoleAssistant, "I just ")
	acc.AppendDelta(constant.RoleAssistant, "feel lost")
	acc.CompleteTurn(constant.RoleAssistant, "", time.Now())

	turns := acc.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Content != "I just feel lost" {
		t.Errorf("expected accumulated deltas, got %q", turns[0].Content)
	}
}

func TestAccumulatorCompletionTextWins(t *testing.T) {
	acc := NewAccumulator(0)

	acc.AppendDelta(constant.RoleUser, "partial fra")
	acc.CompleteTurn(constant.RoleUser, "the full corrected transcript", time.Now())

	turns := acc.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Content != "the full corrected transcript" {
		t.Errorf("expected completion text to win, got %q", turns[0].Content)
	}
}

func TestAccumulatorFlushPartial(t *testing.T) {
	acc := NewAccumulator(0)
	now := time.Now()

	acc.CompleteTurn(constant.RoleUser, "finished turn", now.Add(-time.Minute))
	acc.AppendDelta(constant.RoleAssistant, "I was about to say")
	acc.FlushPartial(now)

	turns := acc.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected flushed partial as final turn, got %d turns", len(turns))
	}
	if turns[1].Content != "I was about to say" {
		t.Errorf("expected partial fragment preserved, got %q", turns[1].Content)
	}
	if turns[1].Role != constant.RoleAssistant {
		t.Errorf("expected assistant role, got %s", turns[1].Role)
	}
}

func TestAccumulatorFlushPartialNothingPending(t *testing.T) {
	acc := NewAccumulator(0)
	acc.FlushPartial(time.Now())

	if len(acc.Turns()) != 0 {
		t.Error("expected no turns from empty flush")
	}
}

func TestAccumulatorIgnoresWhitespaceTurns(t *testing.T) {
	acc := NewAccumulator(0)
	acc.CompleteTurn(constant.RoleUser, "   ", time.Now())

	if len(acc.Turns()) != 0 {
		t.Error("expected whitespace-only turn to be dropped")
	}
}

func TestAccumulatorCap(t *testing.T) {
	acc := NewAccumulator(2)
	now := time.Now()

	acc.CompleteTurn(constant.RoleUser, "one", now)
	acc.CompleteTurn(constant.RoleAssistant, "two", now.Add(time.Second))
	acc.CompleteTurn(constant.RoleUser, "three", now.Add(2*time.Second))

	if len(acc.Turns()) != 2 {
		t.Fatalf("expected cap to hold at 2 turns, got %d", len(acc.Turns()))
	}
	if acc.Dropped() != 1 {
		t.Errorf("expected 1 dropped turn, got %d", acc.Dropped())
	}
}
