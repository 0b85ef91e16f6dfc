package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	pgdb "github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/db/postgres"
)

// LecturerRepository は PostgreSQL を利用した講師参照の実装です。
type LecturerRepository struct {
	pool pgdb.Queryer
}

// NewLecturerRepository は LecturerRepository を生成します。
func NewLecturerRepository(pool pgdb.Queryer) *LecturerRepository {
	return &LecturerRepository{pool: pool}
}

// FindByID は ID で講師を取得します。
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*lecturer.Lecturer, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, name, email, created_at, updated_at
          FROM lecturers
         WHERE id = $1
         LIMIT 1
    `, id)

	found, err := scanLecturer(row)
	if err != nil {
		return nil, translateLecturerPgError(err)
	}
	return found, nil
}

// Count は登録講師数を返します。
func (r *LecturerRepository) Count(ctx context.Context) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var count int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM lecturers`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanLecturer(row pgx.Row) (*lecturer.Lecturer, error) {
	var (
		id, name, email      string
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(&id, &name, &email, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lecturer.ErrLecturerNotFound
		}
		return nil, err
	}

	return &lecturer.Lecturer{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func translateLecturerPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentationCode {
		return lecturer.ErrLecturerNotFound
	}
	return err
}
