package handler

import (
	"context"
	"errors"
	"io"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClaimGrpcHandler は ClaimService の gRPC 実装です。
type ClaimGrpcHandler struct {
	svc       claim.UseCase
	lecturers lecturer.UseCase
}

var _ ClaimServiceServer = (*ClaimGrpcHandler)(nil)

// NewClaimGrpcHandler は ClaimGrpcHandler を生成します。lecturers が nil の場合は講師名を付与しません。
func NewClaimGrpcHandler(svc claim.UseCase, lecturers lecturer.UseCase) *ClaimGrpcHandler {
	return &ClaimGrpcHandler{svc: svc, lecturers: lecturers}
}

// CreateClaim は講師の請求を提出します。
func (h *ClaimGrpcHandler) CreateClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	hours, err := intField(fields, "hours_worked")
	if err != nil {
		return nil, err
	}
	rate, err := decimalField(fields, "hourly_rate")
	if err != nil {
		return nil, err
	}

	var upload *document.Upload
	if docFields := fields["document"].GetStructValue().GetFields(); len(docFields) > 0 {
		content, err := bytesField(docFields, "content")
		if err != nil {
			return nil, err
		}
		upload = &document.Upload{FileName: stringField(docFields, "file_name"), Content: content}
	}

	created, err := h.svc.CreateClaim(ctx, claim.CreateClaimInput{
		Actor:       actor,
		Period:      stringField(fields, "period"),
		HoursWorked: hours,
		HourlyRate:  rate,
		Document:    upload,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"claim": h.claimView(ctx, created, nil)})
}

// GetClaim は請求を取得します。
func (h *ClaimGrpcHandler) GetClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	found, err := h.svc.GetClaim(ctx, claim.GetClaimInput{ID: stringField(fields, "id"), Actor: actor})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"claim": h.claimView(ctx, found, nil)})
}

// ListClaims は呼び出し元の役割に応じた請求の一覧を返します。
func (h *ClaimGrpcHandler) ListClaims(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	pageSize, err := intField(fields, "page_size")
	if err != nil {
		return nil, err
	}

	result, err := h.svc.ListClaims(ctx, claim.ListClaimsInput{
		Actor:     actor,
		PageSize:  pageSize,
		PageToken: stringField(fields, "page_token"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	names := make(map[string]string)
	claims := make([]any, 0, len(result.Claims))
	for _, c := range result.Claims {
		claims = append(claims, h.claimView(ctx, c, names))
	}

	return newResponse(map[string]any{
		"claims":          claims,
		"next_page_token": result.NextPageToken,
	})
}

// TransitionClaim は承認または却下を適用します。
func (h *ClaimGrpcHandler) TransitionClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := h.svc.Transition(ctx, claim.TransitionInput{
		ClaimID: stringField(fields, "id"),
		Actor:   actor,
		Action:  claim.Action(stringField(fields, "action")),
		Reason:  stringField(fields, "reason"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return newResponse(map[string]any{"claim": h.claimView(ctx, updated, nil)})
}

// TrackClaim は講師が自分の請求の状況と履歴を確認します。
func (h *ClaimGrpcHandler) TrackClaim(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	tracking, err := h.svc.TrackClaim(ctx, claim.TrackClaimInput{ID: stringField(fields, "id"), Actor: actor})
	if err != nil {
		return nil, toStatusError(err)
	}

	history := make([]any, 0, len(tracking.History))
	for _, t := range tracking.History {
		history = append(history, transitionView(t))
	}

	return newResponse(map[string]any{
		"claim":   h.claimView(ctx, tracking.Claim, nil),
		"history": history,
	})
}

// DownloadDocument は請求の添付書類を返します。
func (h *ClaimGrpcHandler) DownloadDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requestFields(req)
	if err != nil {
		return nil, err
	}
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := h.svc.OpenDocument(ctx, claim.OpenDocumentInput{ClaimID: stringField(fields, "claim_id"), Actor: actor})
	if err != nil {
		return nil, toStatusError(err)
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(doc.Body)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "read document: %v", err)
	}

	return newResponse(map[string]any{
		"file_name":    doc.Name,
		"content_type": doc.ContentType,
		"content":      content,
	})
}

// claimView は請求をレスポンス用の map に変換します。names は講師名の要求内キャッシュです。
func (h *ClaimGrpcHandler) claimView(ctx context.Context, c *claim.Claim, names map[string]string) map[string]any {
	view := map[string]any{
		"id":              c.ID,
		"lecturer_id":     c.LecturerID,
		"lecturer_name":   h.lecturerName(ctx, c.LecturerID, names),
		"period":          c.Period,
		"hours_worked":    c.HoursWorked,
		"hourly_rate":     c.HourlyRate.StringFixed(2),
		"total_amount":    c.TotalAmount.StringFixed(2),
		"status":          string(c.Status),
		"status_note":     c.StatusNote,
		"submission_date": formatTime(c.SubmissionDate),
		"version":         c.Version,
		"created_at":      formatTime(c.CreatedAt),
		"updated_at":      formatTime(c.UpdatedAt),
	}
	if c.RejectionReason != nil {
		view["rejection_reason"] = *c.RejectionReason
	}
	if c.SupportingDocument != nil {
		view["supporting_document"] = *c.SupportingDocument
	}
	return view
}

func (h *ClaimGrpcHandler) lecturerName(ctx context.Context, id string, names map[string]string) string {
	if h.lecturers == nil || id == "" {
		return ""
	}
	if name, ok := names[id]; ok {
		return name
	}

	var name string
	found, err := h.lecturers.GetLecturer(ctx, id)
	switch {
	case err == nil:
		name = found.Name
	case errors.Is(err, lecturer.ErrLecturerNotFound):
	default:
		logging.FromContext(ctx).WithError(err).WithField("lecturer_id", id).Warn("lecturer lookup failed")
	}

	if names != nil {
		names[id] = name
	}
	return name
}

func transitionView(t *claim.Transition) map[string]any {
	view := map[string]any{
		"from":       string(t.From),
		"to":         string(t.To),
		"actor_role": string(t.ActorRole),
		"actor_id":   t.ActorID,
		"note":       t.Note,
		"created_at": formatTime(t.CreatedAt),
	}
	if t.Reason != nil {
		view["reason"] = *t.Reason
	}
	return view
}
