package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewBatchResult_Counts(t *testing.T) {
	outcomes := []ExtractionOutcome{
		SuccessOutcome("a.pdf", []FigureSummary{{Name: "1"}, {Name: "2"}}, time.Second),
		FailureOutcome("b.pdf", "boom", time.Second),
		SuccessOutcome("c.pdf", nil, time.Second),
	}

	r := NewBatchResult("id", "dir", outcomes, time.Now())

	if r.Total != 3 {
		t.Errorf("Expected total 3, got %d", r.Total)
	}
	if r.Succeeded != 2 {
		t.Errorf("Expected 2 succeeded, got %d", r.Succeeded)
	}
	if r.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", r.Failed)
	}
	if r.TotalFigures() != 2 {
		t.Errorf("Expected 2 figures, got %d", r.TotalFigures())
	}
}

func TestNewBatchResult_EmptyOutcomesNotNil(t *testing.T) {
	r := NewBatchResult("id", "dir", nil, time.Now())
	if r.Outcomes == nil {
		t.Fatal("Expected empty, non-nil outcomes")
	}
	if r.Total != 0 {
		t.Errorf("Expected total 0, got %d", r.Total)
	}
}

func TestFailureOutcome_AlwaysHasMessage(t *testing.T) {
	o := FailureOutcome("x.pdf", "", 0)
	if o.ErrorMessage == "" {
		t.Error("Expected non-empty error message")
	}
	if o.Status != StatusFailure {
		t.Errorf("Expected failure status, got %s", o.Status)
	}
}

func TestSuccessOutcome_NoErrorMessage(t *testing.T) {
	o := SuccessOutcome("x.pdf", []FigureSummary{{Name: "1"}}, 1500*time.Millisecond)
	if o.ErrorMessage != "" {
		t.Errorf("Expected empty error message, got %q", o.ErrorMessage)
	}
	if o.FigureCount != 1 {
		t.Errorf("Expected figure count 1, got %d", o.FigureCount)
	}
	if o.ElapsedSeconds != 1.5 {
		t.Errorf("Expected 1.5s elapsed, got %f", o.ElapsedSeconds)
	}
}

func TestIsType(t *testing.T) {
	base := NotFoundError("missing", nil)
	wrapped := fmt.Errorf("resolve: %w", base)

	if !IsType(wrapped, ErrorTypeNotFound) {
		t.Error("Expected wrapped error to be not_found")
	}
	if IsType(wrapped, ErrorTypeDownload) {
		t.Error("Did not expect download type")
	}
	if IsType(errors.New("plain"), ErrorTypeNotFound) {
		t.Error("Plain error should not match")
	}
	if TypeOf(wrapped) != ErrorTypeNotFound {
		t.Errorf("Expected TypeOf not_found, got %q", TypeOf(wrapped))
	}
}

func TestDomainError_Message(t *testing.T) {
	err := DownloadError("fetch failed", errors.New("HTTP 404"))
	want := "[download] fetch failed: HTTP 404"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if WriteError("no disk", nil).Error() != "[write] no disk" {
		t.Errorf("Unexpected message: %s", WriteError("no disk", nil).Error())
	}
}
