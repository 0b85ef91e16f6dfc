package report

import (
	"context"
	"fmt"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
)

// ClaimSource は集計対象の請求を全件取得します。
type ClaimSource interface {
	ListAll(ctx context.Context) ([]*claim.Claim, error)
}

// LecturerCounter は登録講師数を返します。
type LecturerCounter interface {
	Count(ctx context.Context) (int, error)
}

// UseCase はレポートユースケースの公開インターフェースです。
type UseCase interface {
	GetReport(ctx context.Context, in GetReportInput) (*Summary, error)
}

// GetReportInput はレポート取得時の入力です。
type GetReportInput struct {
	Actor claim.Actor
}

// Service はマネージャー向けの集計を提供します。
type Service struct {
	claims    ClaimSource
	lecturers LecturerCounter
	tx        claim.TransactionManager
}

// NewService は Service を生成します。tx が nil の場合はトランザクションを張りません。
func NewService(claims ClaimSource, lecturers LecturerCounter, tx claim.TransactionManager) *Service {
	return &Service{claims: claims, lecturers: lecturers, tx: tx}
}

// GetReport は全請求のスナップショットを集計します。マネージャーのみ実行できます。
func (s *Service) GetReport(ctx context.Context, in GetReportInput) (*Summary, error) {
	if in.Actor.Role != claim.RoleManager {
		return nil, fmt.Errorf("only academic managers can view statistics: %w", claim.ErrForbidden)
	}

	var summary Summary
	load := func(txCtx context.Context) error {
		claims, err := s.claims.ListAll(txCtx)
		if err != nil {
			return err
		}
		summary = Summarize(claims)

		if s.lecturers != nil {
			count, err := s.lecturers.Count(txCtx)
			if err != nil {
				return err
			}
			summary.TotalLecturers = count
		}
		return nil
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithinReadOnly(ctx, load)
	} else {
		err = load(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
