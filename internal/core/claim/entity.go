package claim

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Status は請求のワークフロー上の状態を表します。
type Status string

const (
	// StatusPending は提出前の旧ラベルです。読み取り側では StatusSubmitted と同等に扱います。
	StatusPending               Status = "Pending"
	StatusSubmitted             Status = "Submitted"
	StatusApprovedByCoordinator Status = "ApprovedByCoordinator"
	StatusApprovedByManager     Status = "ApprovedByManager"
	StatusRejectedByCoordinator Status = "RejectedByCoordinator"
	StatusRejectedByManager     Status = "RejectedByManager"
)

// Valid は定義済みの状態かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted,
		StatusApprovedByCoordinator, StatusApprovedByManager,
		StatusRejectedByCoordinator, StatusRejectedByManager:
		return true
	default:
		return false
	}
}

// IsApproved はいずれかの承認済み状態かどうかを返します。
func (s Status) IsApproved() bool {
	return s == StatusApprovedByCoordinator || s == StatusApprovedByManager
}

// IsRejected はいずれかの却下状態かどうかを返します。
func (s Status) IsRejected() bool {
	return s == StatusRejectedByCoordinator || s == StatusRejectedByManager
}

// IsPending は審査待ちかどうかを返します。
func (s Status) IsPending() bool {
	return s == StatusSubmitted || s == StatusPending
}

// IsTerminal はこれ以上遷移できない状態かどうかを返します。
func (s Status) IsTerminal() bool {
	return s == StatusApprovedByManager || s.IsRejected()
}

// Role は呼び出し元の役割です。
type Role string

const (
	RoleLecturer    Role = "Lecturer"
	RoleCoordinator Role = "Coordinator"
	RoleManager     Role = "Manager"
)

// ParseRole は大文字小文字を区別せずに役割を解釈します。
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lecturer":
		return RoleLecturer, true
	case "coordinator", "programme_coordinator":
		return RoleCoordinator, true
	case "manager", "academic_manager":
		return RoleManager, true
	default:
		return "", false
	}
}

// Action は審査操作です。
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Actor は操作を行う呼び出し元です。認証は外部で行われ、ここでは主張された値をそのまま扱います。
type Actor struct {
	Role Role
	ID   string
}

// Claim は講師の報酬請求エンティティです。
type Claim struct {
	ID                 string
	LecturerID         string
	Period             string
	HoursWorked        int
	HourlyRate         decimal.Decimal
	TotalAmount        decimal.Decimal
	Status             Status
	StatusNote         string
	SubmissionDate     time.Time
	RejectionReason    *string
	SupportingDocument *string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Transition は状態遷移の履歴レコードです。
type Transition struct {
	ClaimID   string
	From      Status
	To        Status
	ActorRole Role
	ActorID   string
	Reason    *string
	Note      string
	CreatedAt time.Time
}

const (
	MinHoursWorked = 1
	MaxHoursWorked = 200
	maxPeriodLen   = 32
)

var (
	MinHourlyRate = decimal.New(1, -2)
	MaxHourlyRate = decimal.NewFromInt(1000)
)

// RecomputeTotal は勤務時間と時給から請求額を算出します。
func RecomputeTotal(hoursWorked int, hourlyRate decimal.Decimal) decimal.Decimal {
	return hourlyRate.Mul(decimal.NewFromInt(int64(hoursWorked)))
}

// RecomputeTotal は TotalAmount を入力値から再計算し、その値を返します。
func (c *Claim) RecomputeTotal() decimal.Decimal {
	c.TotalAmount = RecomputeTotal(c.HoursWorked, c.HourlyRate)
	return c.TotalAmount
}

type claimFields struct {
	LecturerID  string `validate:"required"`
	Period      string `validate:"required,max=32"`
	HoursWorked int    `validate:"min=1,max=200"`
}

var validate = validator.New()

// NewClaim は入力値を検証し、提出済み状態の請求を生成します。
func NewClaim(lecturerID, period string, hoursWorked int, hourlyRate decimal.Decimal, document *string, now time.Time) (*Claim, error) {
	fields := claimFields{
		LecturerID:  strings.TrimSpace(lecturerID),
		Period:      strings.TrimSpace(period),
		HoursWorked: hoursWorked,
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	if err := validateRate(hourlyRate); err != nil {
		return nil, err
	}

	c := &Claim{
		LecturerID:         fields.LecturerID,
		Period:             fields.Period,
		HoursWorked:        hoursWorked,
		HourlyRate:         hourlyRate,
		Status:             StatusSubmitted,
		StatusNote:         string(StatusSubmitted),
		SubmissionDate:     now,
		SupportingDocument: document,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	c.RecomputeTotal()
	return c, nil
}

func validateFields(f claimFields) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	switch verrs[0].StructField() {
	case "HoursWorked":
		return fmt.Errorf("hours_worked must be between %d and %d: %w", MinHoursWorked, MaxHoursWorked, ErrInvalidHours)
	case "Period":
		return fmt.Errorf("period must be 1..%d characters: %w", maxPeriodLen, ErrInvalidPeriod)
	default:
		return ErrInvalidLecturerID
	}
}

func validateRate(rate decimal.Decimal) error {
	if rate.LessThan(MinHourlyRate) || rate.GreaterThan(MaxHourlyRate) {
		return fmt.Errorf("hourly_rate must be between %s and %s: %w", MinHourlyRate.StringFixed(2), MaxHourlyRate.StringFixed(2), ErrInvalidRate)
	}
	if rate.Exponent() < -2 && !rate.Equal(rate.Round(2)) {
		return fmt.Errorf("hourly_rate allows at most 2 decimal places: %w", ErrInvalidRate)
	}
	return nil
}
