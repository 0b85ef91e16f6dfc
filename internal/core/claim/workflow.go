package claim

import (
	"fmt"
	"strings"
	"time"
)

type transitionKey struct {
	role   Role
	from   Status
	action Action
}

// 許可される遷移の一覧。ここにない組み合わせはすべて ErrInvalidTransition になります。
var transitionTable = map[transitionKey]Status{
	{RoleCoordinator, StatusSubmitted, ActionApprove}:         StatusApprovedByCoordinator,
	{RoleCoordinator, StatusSubmitted, ActionReject}:          StatusRejectedByCoordinator,
	{RoleManager, StatusSubmitted, ActionApprove}:             StatusApprovedByManager,
	{RoleManager, StatusSubmitted, ActionReject}:              StatusRejectedByManager,
	{RoleManager, StatusApprovedByCoordinator, ActionApprove}: StatusApprovedByManager,
	{RoleManager, StatusApprovedByCoordinator, ActionReject}:  StatusRejectedByManager,
}

// CanReview は役割が承認・却下の操作を行えるかどうかを返します。
func CanReview(role Role) bool {
	return role == RoleCoordinator || role == RoleManager
}

// Next は役割・現在の状態・操作から遷移先の状態を返します。
func Next(role Role, from Status, action Action) (Status, error) {
	if from == StatusPending {
		from = StatusSubmitted
	}
	to, ok := transitionTable[transitionKey{role: role, from: from, action: action}]
	if !ok {
		return "", fmt.Errorf("%s cannot %s a claim in state %s: %w", role, action, from, ErrInvalidTransition)
	}
	return to, nil
}

func normalizeAction(raw Action) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(string(raw)))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("action %q: %w", raw, ErrInvalidAction)
	}
}

// AuditNote は遷移を人が読める監査文字列にします。
func AuditNote(role Role, action Action, reason string) string {
	if action == ActionReject {
		return fmt.Sprintf("Rejected by %s: %s", role, reason)
	}
	return fmt.Sprintf("Approved by %s", role)
}

// Apply は遷移表に従って状態を更新し、履歴レコードを返します。
// 役割と却下理由の検証は呼び出し側で済んでいる前提です。
func (c *Claim) Apply(actor Actor, action Action, reason string, now time.Time) (*Transition, error) {
	to, err := Next(actor.Role, c.Status, action)
	if err != nil {
		return nil, err
	}

	from := c.Status
	note := AuditNote(actor.Role, action, reason)

	c.Status = to
	c.StatusNote = note
	if action == ActionReject {
		r := reason
		c.RejectionReason = &r
	}
	c.RecomputeTotal()
	c.UpdatedAt = now

	t := &Transition{
		ClaimID:   c.ID,
		From:      from,
		To:        to,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
		Note:      note,
		CreatedAt: now,
	}
	if action == ActionReject {
		r := reason
		t.Reason = &r
	}
	return t, nil
}
