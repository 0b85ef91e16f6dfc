package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubLecturerRow struct {
	scanFn func(dest ...any) error
}

func (s stubLecturerRow) Scan(dest ...any) error {
	return s.scanFn(dest...)
}

func TestScanLecturer_NoRows(t *testing.T) {
	t.Parallel()

	row := stubLecturerRow{scanFn: func(dest ...any) error {
		return pgx.ErrNoRows
	}}

	if _, err := scanLecturer(row); !errors.Is(err, lecturer.ErrLecturerNotFound) {
		t.Fatalf("expected ErrLecturerNotFound, got %v", err)
	}
}

func TestLecturerRepository_FindByID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLecturerRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM lecturers`)).
		WithArgs("lect-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
			AddRow("lect-1", "Thandi Mokoena", "thandi@example.ac.za", now, now))

	found, err := repo.FindByID(context.Background(), "lect-1")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if found.Name != "Thandi Mokoena" || found.Email != "thandi@example.ac.za" {
		t.Fatalf("unexpected lecturer: %+v", found)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLecturerRepository_Count(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewLecturerRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM lecturers`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
