package tasks

import "testing"

func TestCompleteStep_RecomputesCurrentStepFromCompletedCount(t *testing.T) {
	rec := NewRecord("id-1", "user-1", "title", "desc", "medium", StepNamesFor(TypeForecast))

	rec.CompleteStep(0)
	if rec.CurrentStep != 1 {
		t.Fatalf("expected CurrentStep 1 after completing one step, got %d", rec.CurrentStep)
	}

	rec.CompleteStep(2)
	if rec.CurrentStep != 2 {
		t.Fatalf("expected CurrentStep 2 after completing two out of order steps, got %d", rec.CurrentStep)
	}
	if !rec.Steps[0].IsCompleted || !rec.Steps[2].IsCompleted {
		t.Fatalf("expected steps 0 and 2 to be marked completed")
	}
	if rec.Steps[1].IsCompleted {
		t.Fatalf("expected step 1 to remain incomplete")
	}
}

func TestCompleteStep_IsIdempotent(t *testing.T) {
	rec := NewRecord("id-1", "user-1", "title", "desc", "medium", StepNamesFor(TypeForecast))
	rec.CompleteStep(0)
	firstCompletedAt := rec.Steps[0].CompletedAt

	rec.CompleteStep(0)
	if rec.CurrentStep != 1 {
		t.Fatalf("expected CurrentStep to remain 1 after re-completing the same step, got %d", rec.CurrentStep)
	}
	if rec.Steps[0].CompletedAt != firstCompletedAt {
		t.Fatalf("expected CompletedAt to be unchanged by a repeated CompleteStep call")
	}
}

func TestCompleteStep_OutOfRangeIsNoop(t *testing.T) {
	rec := NewRecord("id-1", "user-1", "title", "desc", "medium", StepNamesFor(TypeForecast))
	rec.CompleteStep(-1)
	rec.CompleteStep(99)
	if rec.CurrentStep != 0 {
		t.Fatalf("expected out-of-range indices to be ignored, got CurrentStep=%d", rec.CurrentStep)
	}
}

func TestStepNamesFor_FourStepsPerType(t *testing.T) {
	for _, typ := range []Type{TypeMarketAnalysis, TypeAutoTrade, TypeForecast} {
		names := StepNamesFor(typ)
		if len(names) != 4 {
			t.Errorf("expected 4 step names for %s, got %d", typ, len(names))
		}
	}
}

func TestNewRecord_StartsPending(t *testing.T) {
	rec := NewRecord("id-1", "user-1", "title", "desc", "high", StepNamesFor(TypeMarketAnalysis))
	if rec.Status != StatusPending {
		t.Fatalf("expected a freshly built record to start pending, got %s", rec.Status)
	}
	if rec.TotalSteps != 4 {
		t.Fatalf("expected TotalSteps to mirror the step name count, got %d", rec.TotalSteps)
	}
}
