package traffic

import (
	"testing"
	"time"
)

// TestRequestCount_Empty verifies that RequestCount returns 0 when nothing
// has been recorded within the window.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecord_AndCount verifies that each outcome is counted separately and in the total.
func TestRecord_AndCount(t *testing.T) {
	Reset()
	Record(OutcomeSuccess)
	Record(OutcomeSuccess)
	Record(OutcomeEmpty)
	Record(OutcomeDenied)
	if n := Count(OutcomeSuccess, time.Minute); n != 2 {
		t.Errorf("Count(success) = %d, want 2", n)
	}
	if n := Count(OutcomeDenied, time.Minute); n != 1 {
		t.Errorf("Count(denied) = %d, want 1", n)
	}
	if n := RequestCount(time.Minute); n != 4 {
		t.Errorf("RequestCount() = %d, want 4", n)
	}
}

// TestErrorRate_EmptyCountsAsAnswered verifies that stations without data do
// not raise the error rate.
func TestErrorRate_EmptyCountsAsAnswered(t *testing.T) {
	Reset()
	Record(OutcomeSuccess)
	Record(OutcomeEmpty)
	Record(OutcomeError)
	errors, total := ErrorRate(time.Minute)
	if errors != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errors, total)
	}
}

// TestErrorRate_DeniedExcluded verifies that rate-limit denials are left out
// of the error rate.
func TestErrorRate_DeniedExcluded(t *testing.T) {
	Reset()
	Record(OutcomeSuccess)
	RecordN(OutcomeDenied, 2)
	errors, total := ErrorRate(time.Minute)
	if errors != 0 || total != 1 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 1)", errors, total)
	}
}

// TestRecordN_UnifiedDenominator verifies bulk recording feeds both counters.
func TestRecordN_UnifiedDenominator(t *testing.T) {
	Reset()
	RecordN(OutcomeSuccess, 39)
	RecordN(OutcomeError, 1)
	errors, total := ErrorRate(time.Minute)
	if errors != 1 || total != 40 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 40)", errors, total)
	}
	if n := RequestCount(time.Minute); n != 40 {
		t.Errorf("RequestCount() = %d, want 40", n)
	}
}

// TestTracker_WindowExcludesOld verifies that outcomes outside the window are not counted.
func TestTracker_WindowExcludesOld(t *testing.T) {
	var tr Tracker
	tr.Record(OutcomeError)
	time.Sleep(20 * time.Millisecond)
	if n := tr.Count(OutcomeError, 5*time.Millisecond); n != 0 {
		t.Errorf("Count() = %d, want 0 outside window", n)
	}
	if n := tr.Count(OutcomeError, time.Minute); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}
