package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	pgdb "github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const (
	foreignKeyViolationCode       = "23503"
	invalidTextRepresentationCode = "22P02"
)

const claimColumns = `id, lecturer_id, period, hours_worked, hourly_rate, total_amount, status, status_note,
               submission_date, rejection_reason, supporting_document, version, created_at, updated_at`

// ClaimRepository は PostgreSQL を利用した請求永続化の実装です。
type ClaimRepository struct {
	pool pgdb.Queryer
}

// NewClaimRepository は ClaimRepository を生成します。
func NewClaimRepository(pool pgdb.Queryer) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// Create は請求を新規作成します。ID とバージョンはデータベースで採番されます。
func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim) (*claim.Claim, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO claims (lecturer_id, period, hours_worked, hourly_rate, total_amount, status, status_note,
                            submission_date, rejection_reason, supporting_document, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING `+claimColumns+`
    `, c.LecturerID, c.Period, c.HoursWorked, c.HourlyRate.String(), c.TotalAmount.String(), string(c.Status), c.StatusNote,
		c.SubmissionDate, nullableString(c.RejectionReason), nullableString(c.SupportingDocument), c.CreatedAt, c.UpdatedAt)

	created, err := scanClaim(row)
	if err != nil {
		return nil, translateClaimPgError(err, claim.ErrInvalidLecturerID)
	}
	return created, nil
}

// Update は保存済みバージョンが一致する場合のみ請求を更新します。
func (r *ClaimRepository) Update(ctx context.Context, c *claim.Claim) (*claim.Claim, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE claims
           SET status = $1,
               status_note = $2,
               rejection_reason = $3,
               total_amount = $4,
               updated_at = $5,
               version = version + 1
         WHERE id = $6
           AND version = $7
        RETURNING `+claimColumns+`
    `, string(c.Status), c.StatusNote, nullableString(c.RejectionReason), c.TotalAmount.String(), c.UpdatedAt, c.ID, c.Version)

	updated, err := scanClaim(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, claim.ErrClaimNotFound) {
		return nil, translateClaimPgError(err, claim.ErrClaimNotFound)
	}

	// 0 件更新は対象が消えたのかバージョン不一致なのかを区別します。
	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return nil, translateClaimPgError(err, claim.ErrClaimNotFound)
	}
	if !exists {
		return nil, claim.ErrClaimNotFound
	}
	return nil, fmt.Errorf("claim %s at version %d: %w", c.ID, c.Version, claim.ErrConcurrentUpdate)
}

// FindByID は ID で請求を取得します。
func (r *ClaimRepository) FindByID(ctx context.Context, id string) (*claim.Claim, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+claimColumns+`
          FROM claims
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanClaim(row)
	if err != nil {
		return nil, translateClaimPgError(err, claim.ErrClaimNotFound)
	}
	return found, nil
}

// List は提出日の新しい順に請求を取得します。
func (r *ClaimRepository) List(ctx context.Context, filter claim.ListClaimsFilter) ([]*claim.Claim, string, error) {
	if filter.Limit <= 0 {
		return nil, "", claim.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", claim.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.LecturerID != nil {
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "lecturer_id = "+placeholder)
		args = append(args, *filter.LecturerID)
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		placeholder := "$" + strconv.Itoa(len(args)+1)
		conditions = append(conditions, "status = ANY("+placeholder+")")
		args = append(args, statuses)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limitPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, limitWithBuffer)
	offsetPlaceholder := "$" + strconv.Itoa(len(args)+1)
	args = append(args, filter.Offset)

	query := `
        SELECT ` + claimColumns + `
          FROM claims` + whereClause + `
         ORDER BY submission_date DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	claims, err := r.query(ctx, claim.ErrInvalidLecturerID, query, args...)
	if err != nil {
		return nil, "", err
	}

	var nextToken string
	if len(claims) > filter.Limit {
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
		claims = claims[:filter.Limit]
	}

	return claims, nextToken, nil
}

// ListAll は集計用に全請求を取得します。
func (r *ClaimRepository) ListAll(ctx context.Context) ([]*claim.Claim, error) {
	return r.query(ctx, claim.ErrClaimNotFound, `
        SELECT `+claimColumns+`
          FROM claims
         ORDER BY submission_date DESC, id DESC
    `)
}

// query の malformed は UUID 列に不正な文字列を渡したときに返すエラーです。
func (r *ClaimRepository) query(ctx context.Context, malformed error, query string, args ...any) ([]*claim.Claim, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateClaimPgError(err, malformed)
	}
	defer rows.Close()

	claims := make([]*claim.Claim, 0)
	for rows.Next() {
		found, err := scanClaim(rows)
		if err != nil {
			return nil, translateClaimPgError(err, malformed)
		}
		claims = append(claims, found)
	}

	if err := rows.Err(); err != nil {
		return nil, translateClaimPgError(err, malformed)
	}
	return claims, nil
}

// AppendTransition は遷移履歴を追記します。
func (r *ClaimRepository) AppendTransition(ctx context.Context, t *claim.Transition) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO claim_transitions (claim_id, from_status, to_status, actor_role, actor_id, reason, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, t.ClaimID, string(t.From), string(t.To), string(t.ActorRole), t.ActorID, nullableString(t.Reason), t.Note, t.CreatedAt)
	if err != nil {
		return translateClaimPgError(err, claim.ErrClaimNotFound)
	}
	return nil
}

// ListTransitions は請求の遷移履歴を古い順に取得します。
func (r *ClaimRepository) ListTransitions(ctx context.Context, claimID string) ([]*claim.Transition, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT claim_id, from_status, to_status, actor_role, actor_id, reason, note, created_at
          FROM claim_transitions
         WHERE claim_id = $1
         ORDER BY created_at ASC, id ASC
    `, claimID)
	if err != nil {
		return nil, translateClaimPgError(err, claim.ErrClaimNotFound)
	}
	defer rows.Close()

	history := make([]*claim.Transition, 0)
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, t)
	}

	if err := rows.Err(); err != nil {
		return nil, translateClaimPgError(err, claim.ErrClaimNotFound)
	}
	return history, nil
}

func scanClaim(row pgx.Row) (*claim.Claim, error) {
	var (
		id, lecturerID, period       string
		hoursWorked                  int
		hourlyRate, totalAmount      string
		status, statusNote           string
		submissionDate               time.Time
		rejectionReason, documentKey sql.NullString
		version                      int64
		createdAt, updatedAt         time.Time
	)

	if err := row.Scan(&id, &lecturerID, &period, &hoursWorked, &hourlyRate, &totalAmount, &status, &statusNote,
		&submissionDate, &rejectionReason, &documentKey, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, claim.ErrClaimNotFound
		}
		return nil, err
	}

	rate, err := decimal.NewFromString(hourlyRate)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim %s hourly_rate: %w", id, err)
	}
	total, err := decimal.NewFromString(totalAmount)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim %s total_amount: %w", id, err)
	}

	return &claim.Claim{
		ID:                 id,
		LecturerID:         lecturerID,
		Period:             period,
		HoursWorked:        hoursWorked,
		HourlyRate:         rate,
		TotalAmount:        total,
		Status:             claim.Status(status),
		StatusNote:         statusNote,
		SubmissionDate:     submissionDate,
		RejectionReason:    stringPtr(rejectionReason),
		SupportingDocument: stringPtr(documentKey),
		Version:            version,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func scanTransition(row pgx.Row) (*claim.Transition, error) {
	var (
		claimID, from, to, role, actorID, note string
		reason                                 sql.NullString
		createdAt                              time.Time
	)

	if err := row.Scan(&claimID, &from, &to, &role, &actorID, &reason, &note, &createdAt); err != nil {
		return nil, err
	}

	return &claim.Transition{
		ClaimID:   claimID,
		From:      claim.Status(from),
		To:        claim.Status(to),
		ActorRole: claim.Role(role),
		ActorID:   actorID,
		Reason:    stringPtr(reason),
		Note:      note,
		CreatedAt: createdAt,
	}, nil
}

// translateClaimPgError は PostgreSQL のエラーをドメインエラーに変換します。
// malformed は UUID として解釈できない値 (22P02) のときに返すエラーです。
func translateClaimPgError(err error, malformed error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolationCode:
			if pgErr.ConstraintName == "claim_transitions_claim_id_fkey" {
				return claim.ErrClaimNotFound
			}
			return claim.ErrUnknownLecturer
		case invalidTextRepresentationCode:
			return malformed
		}
	}
	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
