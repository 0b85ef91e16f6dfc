package claim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Recorder は請求操作のメトリクスを記録します。
type Recorder interface {
	ClaimCreated()
	TransitionRecorded(role Role, action Action, result string)
}

type noopRecorder struct{}

func (noopRecorder) ClaimCreated() {}
func (noopRecorder) TransitionRecorded(Role, Action, string) {}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service は請求に関するユースケースをまとめます。
type Service struct {
	repo    Repository
	blobs   document.BlobStore
	policy  document.Policy
	clock   Clock
	tx      TransactionManager
	metrics Recorder
}

// UseCase は請求ユースケースの公開インターフェースです。
type UseCase interface {
	CreateClaim(ctx context.Context, in CreateClaimInput) (*Claim, error)
	GetClaim(ctx context.Context, in GetClaimInput) (*Claim, error)
	ListClaims(ctx context.Context, in ListClaimsInput) (*ListClaimsResult, error)
	Transition(ctx context.Context, in TransitionInput) (*Claim, error)
	TrackClaim(ctx context.Context, in TrackClaimInput) (*Tracking, error)
	OpenDocument(ctx context.Context, in OpenDocumentInput) (*Document, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithDocumentPolicy は添付書類の受け入れ条件を設定します。
func WithDocumentPolicy(p document.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithRecorder はメトリクスの記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, blobs document.BlobStore, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:    repo,
		blobs:   blobs,
		policy:  document.DefaultPolicy(),
		clock:   clock,
		tx:      tx,
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateClaimInput は請求提出時の入力です。講師 ID は Actor.ID から取得します。
type CreateClaimInput struct {
	Actor       Actor
	Period      string
	HoursWorked int
	HourlyRate  decimal.Decimal
	Document    *document.Upload
}

// GetClaimInput は請求取得時の入力です。
type GetClaimInput struct {
	ID    string
	Actor Actor
}

// ListClaimsInput は一覧取得時の入力です。絞り込み条件は Actor の役割から決まります。
type ListClaimsInput struct {
	Actor     Actor
	PageSize  int
	PageToken string
}

// ListClaimsResult は一覧取得結果を表します。
type ListClaimsResult struct {
	Claims        []*Claim
	NextPageToken string
}

// TransitionInput は承認・却下操作の入力です。
type TransitionInput struct {
	ClaimID string
	Actor   Actor
	Action  Action
	Reason  string
}

// TrackClaimInput は講師による状況確認の入力です。
type TrackClaimInput struct {
	ID    string
	Actor Actor
}

// Tracking は請求と遷移履歴です。
type Tracking struct {
	Claim   *Claim
	History []*Transition
}

// OpenDocumentInput は添付書類取得時の入力です。
type OpenDocumentInput struct {
	ClaimID string
	Actor   Actor
}

// Document は取得した添付書類です。Body は呼び出し側が Close します。
type Document struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}

// CreateClaim は講師の請求を検証して提出済み状態で保存します。
func (s *Service) CreateClaim(ctx context.Context, in CreateClaimInput) (*Claim, error) {
	if in.Actor.Role != RoleLecturer {
		return nil, fmt.Errorf("only lecturers can submit claims: %w", ErrForbidden)
	}

	now := s.clock.Now()
	c, err := NewClaim(in.Actor.ID, in.Period, in.HoursWorked, in.HourlyRate, nil, now)
	if err != nil {
		return nil, err
	}

	var storedKey string
	if in.Document != nil {
		key, err := s.storeDocument(ctx, *in.Document)
		if err != nil {
			return nil, err
		}
		storedKey = key
		c.SupportingDocument = &key
	}

	var created *Claim
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.Create(txCtx, c)
		if err != nil {
			return err
		}

		if err := s.repo.AppendTransition(txCtx, &Transition{
			ClaimID:   result.ID,
			From:      StatusPending,
			To:        StatusSubmitted,
			ActorRole: RoleLecturer,
			ActorID:   result.LecturerID,
			Note:      result.StatusNote,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		if storedKey != "" {
			if delErr := s.blobs.Delete(ctx, storedKey); delErr != nil {
				err = errors.Join(err, fmt.Errorf("claim: remove orphan document %s: %w", storedKey, delErr))
			}
		}
		return nil, err
	}

	s.metrics.ClaimCreated()
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"claim_id":     created.ID,
		"lecturer_id":  created.LecturerID,
		"period":       created.Period,
		"total_amount": created.TotalAmount.StringFixed(2),
	}).Info("claim submitted")

	return created, nil
}

// GetClaim は閲覧権限を確認したうえで請求を取得します。
func (s *Service) GetClaim(ctx context.Context, in GetClaimInput) (*Claim, error) {
	return s.loadAccessible(ctx, in.ID, in.Actor)
}

// ListClaims は役割に応じた請求の一覧を取得します。
func (s *Service) ListClaims(ctx context.Context, in ListClaimsInput) (*ListClaimsResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	filter := ListClaimsFilter{Limit: limit, Offset: offset}
	switch in.Actor.Role {
	case RoleLecturer:
		lecturerID := strings.TrimSpace(in.Actor.ID)
		if lecturerID == "" {
			return nil, ErrInvalidLecturerID
		}
		filter.LecturerID = &lecturerID
	case RoleCoordinator:
		filter.Statuses = []Status{StatusSubmitted, StatusPending}
	case RoleManager:
	default:
		return nil, fmt.Errorf("role %q cannot list claims: %w", in.Actor.Role, ErrForbidden)
	}

	var (
		claims    []*Claim
		nextToken string
	)

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, token, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		claims = result
		nextToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &ListClaimsResult{Claims: claims, NextPageToken: nextToken}, nil
}

// Transition は承認または却下を適用します。
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*Claim, error) {
	updated, record, err := s.transition(ctx, in)
	s.metrics.TransitionRecorded(in.Actor.Role, actionLabel(in.Action), resultLabel(err))

	entry := logging.FromContext(ctx).WithFields(logrus.Fields{
		"claim_id":   in.ClaimID,
		"actor_role": in.Actor.Role,
		"actor_id":   in.Actor.ID,
		"action":     in.Action,
	})
	if err != nil {
		entry.WithError(err).Warn("claim transition refused")
		return nil, err
	}
	entry.WithFields(logrus.Fields{"from": record.From, "to": record.To}).Info("claim transitioned")

	return updated, nil
}

func (s *Service) transition(ctx context.Context, in TransitionInput) (*Claim, *Transition, error) {
	action, err := normalizeAction(in.Action)
	if err != nil {
		return nil, nil, err
	}

	if !CanReview(in.Actor.Role) {
		return nil, nil, fmt.Errorf("role %q cannot %s claims: %w", in.Actor.Role, action, ErrForbidden)
	}

	reason := strings.TrimSpace(in.Reason)
	if action == ActionReject && reason == "" {
		return nil, nil, ErrReasonRequired
	}

	id := strings.TrimSpace(in.ClaimID)
	if id == "" {
		return nil, nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var (
		updated *Claim
		record  *Transition
	)

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		t, err := existing.Apply(in.Actor, action, reason, s.clock.Now())
		if err != nil {
			return err
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		if err := s.repo.AppendTransition(txCtx, t); err != nil {
			return err
		}

		updated = result
		record = t
		return nil
	}); err != nil {
		return nil, nil, err
	}

	return updated, record, nil
}

// TrackClaim は講師が自分の請求の状況と履歴を確認します。
func (s *Service) TrackClaim(ctx context.Context, in TrackClaimInput) (*Tracking, error) {
	if in.Actor.Role != RoleLecturer {
		return nil, fmt.Errorf("only lecturers can track claims: %w", ErrForbidden)
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var tracking *Tracking
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !CanAccess(found, in.Actor.Role, in.Actor.ID) {
			return ErrForbidden
		}

		history, err := s.repo.ListTransitions(txCtx, found.ID)
		if err != nil {
			return err
		}

		tracking = &Tracking{Claim: found, History: history}
		return nil
	}); err != nil {
		return nil, err
	}

	return tracking, nil
}

// OpenDocument は閲覧権限を確認したうえで添付書類を開きます。
func (s *Service) OpenDocument(ctx context.Context, in OpenDocumentInput) (*Document, error) {
	found, err := s.loadAccessible(ctx, in.ClaimID, in.Actor)
	if err != nil {
		return nil, err
	}

	if found.SupportingDocument == nil || *found.SupportingDocument == "" || s.blobs == nil {
		return nil, ErrDocumentNotFound
	}

	key := *found.SupportingDocument
	body, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, document.ErrBlobNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("claim: open document: %w", err)
	}

	return &Document{Name: key, ContentType: document.ContentType(key), Body: body}, nil
}

func (s *Service) loadAccessible(ctx context.Context, rawID string, actor Actor) (*Claim, error) {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var found *Claim
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		found = result
		return nil
	}); err != nil {
		return nil, err
	}

	if !CanAccess(found, actor.Role, actor.ID) {
		return nil, ErrForbidden
	}
	return found, nil
}

func (s *Service) storeDocument(ctx context.Context, u document.Upload) (string, error) {
	ext, err := s.policy.Validate(u)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if s.blobs == nil {
		return "", errors.New("claim: document storage is not configured")
	}

	key := document.NewKey(ext)
	if err := s.blobs.Put(ctx, key, document.ContentType(key), bytes.NewReader(u.Content), int64(len(u.Content))); err != nil {
		return "", fmt.Errorf("claim: store document: %w", err)
	}
	return key, nil
}

func actionLabel(a Action) Action {
	if normalized, err := normalizeAction(a); err == nil {
		return normalized
	}
	return "unknown"
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConcurrentUpdate):
		return "conflict"
	case errors.Is(err, ErrClaimNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
