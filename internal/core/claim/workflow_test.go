package claim

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNext(t *testing.T) {
	t.Parallel()

	roles := []Role{RoleLecturer, RoleCoordinator, RoleManager}
	statuses := []Status{
		StatusPending, StatusSubmitted,
		StatusApprovedByCoordinator, StatusApprovedByManager,
		StatusRejectedByCoordinator, StatusRejectedByManager,
	}
	actions := []Action{ActionApprove, ActionReject}

	allowed := map[transitionKey]Status{
		{RoleCoordinator, StatusPending, ActionApprove}:           StatusApprovedByCoordinator,
		{RoleCoordinator, StatusPending, ActionReject}:            StatusRejectedByCoordinator,
		{RoleCoordinator, StatusSubmitted, ActionApprove}:         StatusApprovedByCoordinator,
		{RoleCoordinator, StatusSubmitted, ActionReject}:          StatusRejectedByCoordinator,
		{RoleManager, StatusPending, ActionApprove}:               StatusApprovedByManager,
		{RoleManager, StatusPending, ActionReject}:                StatusRejectedByManager,
		{RoleManager, StatusSubmitted, ActionApprove}:             StatusApprovedByManager,
		{RoleManager, StatusSubmitted, ActionReject}:              StatusRejectedByManager,
		{RoleManager, StatusApprovedByCoordinator, ActionApprove}: StatusApprovedByManager,
		{RoleManager, StatusApprovedByCoordinator, ActionReject}:  StatusRejectedByManager,
	}

	for _, role := range roles {
		for _, from := range statuses {
			for _, action := range actions {
				got, err := Next(role, from, action)
				want, ok := allowed[transitionKey{role: role, from: from, action: action}]

				if !ok {
					if !errors.Is(err, ErrInvalidTransition) {
						t.Fatalf("%s %s from %s: expected ErrInvalidTransition, got %v (%s)", role, action, from, err, got)
					}
					continue
				}
				if err != nil {
					t.Fatalf("%s %s from %s: unexpected error %v", role, action, from, err)
				}
				if got != want {
					t.Fatalf("%s %s from %s: expected %s, got %s", role, action, from, want, got)
				}
			}
		}
	}
}

func TestNormalizeAction(t *testing.T) {
	t.Parallel()

	for _, raw := range []Action{"approve", " Approve ", "REJECT"} {
		if _, err := normalizeAction(raw); err != nil {
			t.Fatalf("normalizeAction(%q) returned error: %v", raw, err)
		}
	}
	if _, err := normalizeAction("escalate"); !errors.Is(err, ErrInvalidAction) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestAuditNote(t *testing.T) {
	t.Parallel()

	if got := AuditNote(RoleCoordinator, ActionApprove, ""); got != "Approved by Coordinator" {
		t.Fatalf("unexpected approve note %q", got)
	}
	if got := AuditNote(RoleManager, ActionReject, "Rate too high"); got != "Rejected by Manager: Rate too high" {
		t.Fatalf("unexpected reject note %q", got)
	}
}

func TestClaim_Apply(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	c := &Claim{
		ID:          "claim-1",
		LecturerID:  "lect-1",
		HoursWorked: 4,
		HourlyRate:  decimal.RequireFromString("25.50"),
		TotalAmount: decimal.NewFromInt(1),
		Status:      StatusSubmitted,
	}

	record, err := c.Apply(coordinator, ActionReject, "Wrong module", now)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if c.Status != StatusRejectedByCoordinator || c.RejectionReason == nil || *c.RejectionReason != "Wrong module" {
		t.Fatalf("unexpected claim after reject: %+v", c)
	}
	if !c.TotalAmount.Equal(decimal.NewFromInt(102)) {
		t.Fatalf("expected recomputed total 102, got %s", c.TotalAmount)
	}
	if !c.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %v, got %v", now, c.UpdatedAt)
	}
	if record.From != StatusSubmitted || record.To != StatusRejectedByCoordinator || record.ActorID != "coord-1" {
		t.Fatalf("unexpected transition record: %+v", record)
	}
	if record.Reason == nil || *record.Reason != "Wrong module" || record.Note != c.StatusNote {
		t.Fatalf("unexpected transition reason/note: %+v", record)
	}

	if _, err := c.Apply(manager, ActionApprove, "", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from terminal state, got %v", err)
	}
	if c.Status != StatusRejectedByCoordinator {
		t.Fatalf("failed Apply must not change status, got %s", c.Status)
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status                                  Status
		approved, rejected, pending, terminal bool
	}{
		{StatusPending, false, false, true, false},
		{StatusSubmitted, false, false, true, false},
		{StatusApprovedByCoordinator, true, false, false, false},
		{StatusApprovedByManager, true, false, false, true},
		{StatusRejectedByCoordinator, false, true, false, true},
		{StatusRejectedByManager, false, true, false, true},
	}

	for _, tt := range tests {
		if !tt.status.Valid() {
			t.Fatalf("%s should be valid", tt.status)
		}
		if tt.status.IsApproved() != tt.approved || tt.status.IsRejected() != tt.rejected ||
			tt.status.IsPending() != tt.pending || tt.status.IsTerminal() != tt.terminal {
			t.Fatalf("unexpected predicates for %s", tt.status)
		}
	}

	if Status("Archived").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}
