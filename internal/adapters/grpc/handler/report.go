package handler

import (
	"context"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/report"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReportGrpcHandler は ReportService の gRPC 実装です。
type ReportGrpcHandler struct {
	svc report.UseCase
}

var _ ReportServiceServer = (*ReportGrpcHandler)(nil)

// NewReportGrpcHandler は ReportGrpcHandler を生成します。
func NewReportGrpcHandler(svc report.UseCase) *ReportGrpcHandler {
	return &ReportGrpcHandler{svc: svc}
}

// GetReport はマネージャー向けの集計を返します。
func (h *ReportGrpcHandler) GetReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := requestFields(req); err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := h.svc.GetReport(ctx, report.GetReportInput{Actor: actor})
	if err != nil {
		return nil, toStatusError(err)
	}

	breakdown := make([]any, 0, len(summary.MonthlyBreakdown))
	for _, stat := range summary.MonthlyBreakdown {
		breakdown = append(breakdown, map[string]any{
			"period":          stat.Period,
			"count":           stat.Count,
			"approved_amount": stat.ApprovedAmount.StringFixed(2),
		})
	}

	return newResponse(map[string]any{
		"total_claims":          summary.TotalClaims,
		"approved_claims":       summary.ApprovedClaims,
		"rejected_claims":       summary.RejectedClaims,
		"pending_claims":        summary.PendingClaims,
		"total_approved_amount": summary.TotalApprovedAmount.StringFixed(2),
		"total_lecturers":       summary.TotalLecturers,
		"monthly_breakdown":     breakdown,
	})
}
