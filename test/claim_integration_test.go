//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/blobstore/filesystem"
	repo "github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/report"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const migrationsDir = "../assets/migrations"

func TestClaimWorkflowIntegration(t *testing.T) {
	cfg, err := config.Load(configPathFromEnv())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if err := resetMigrations(cfg.Database.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	var lecturerID string
	if err := pool.QueryRow(ctx, `INSERT INTO lecturers (name, email) VALUES ($1, $2) RETURNING id`,
		"Thandi Mokoena", "thandi@example.ac.za").Scan(&lecturerID); err != nil {
		t.Fatalf("failed to seed lecturer: %v", err)
	}

	blobs, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	tx := pg.NewTransactionManager(pool)
	claimRepo := repo.NewClaimRepository(pool)
	lecturers := lecturer.NewService(repo.NewLecturerRepository(pool))
	svc := claim.NewService(claimRepo, blobs, stubClock{now: time.Now().UTC()}, tx)
	reports := report.NewService(claimRepo, lecturers, tx)

	lect := claim.Actor{Role: claim.RoleLecturer, ID: lecturerID}
	coord := claim.Actor{Role: claim.RoleCoordinator, ID: "coord-1"}
	mgr := claim.Actor{Role: claim.RoleManager, ID: "mgr-1"}

	created, err := svc.CreateClaim(ctx, claim.CreateClaimInput{
		Actor:       lect,
		Period:      "2025-01",
		HoursWorked: 10,
		HourlyRate:  decimal.RequireFromString("100.00"),
		Document:    &document.Upload{FileName: "timesheet.pdf", Content: []byte("%PDF-1.4\n%integration\n")},
	})
	if err != nil {
		t.Fatalf("CreateClaim error: %v", err)
	}
	if !created.TotalAmount.Equal(decimal.RequireFromString("1000")) || created.Status != claim.StatusSubmitted {
		t.Fatalf("unexpected created claim: %+v", created)
	}

	if _, err := svc.CreateClaim(ctx, claim.CreateClaimInput{
		Actor:       claim.Actor{Role: claim.RoleLecturer, ID: "00000000-0000-0000-0000-000000000000"},
		Period:      "2025-01",
		HoursWorked: 1,
		HourlyRate:  decimal.RequireFromString("10"),
	}); !errors.Is(err, claim.ErrUnknownLecturer) {
		t.Fatalf("expected ErrUnknownLecturer, got %v", err)
	}

	approved, err := svc.Transition(ctx, claim.TransitionInput{ClaimID: created.ID, Actor: coord, Action: claim.ActionApprove})
	if err != nil {
		t.Fatalf("coordinator approve error: %v", err)
	}
	if approved.Status != claim.StatusApprovedByCoordinator || approved.Version != created.Version+1 {
		t.Fatalf("unexpected approved claim: %+v", approved)
	}

	stale := *created
	stale.Status = claim.StatusRejectedByCoordinator
	if _, err := claimRepo.Update(ctx, &stale); !errors.Is(err, claim.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate for stale version, got %v", err)
	}

	if _, err := svc.Transition(ctx, claim.TransitionInput{ClaimID: created.ID, Actor: mgr, Action: claim.ActionApprove}); err != nil {
		t.Fatalf("manager approve error: %v", err)
	}

	if _, err := svc.Transition(ctx, claim.TransitionInput{ClaimID: created.ID, Actor: mgr, Action: claim.ActionReject, Reason: "late"}); !errors.Is(err, claim.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from terminal state, got %v", err)
	}

	tracking, err := svc.TrackClaim(ctx, claim.TrackClaimInput{ID: created.ID, Actor: lect})
	if err != nil {
		t.Fatalf("TrackClaim error: %v", err)
	}
	if len(tracking.History) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(tracking.History))
	}

	doc, err := svc.OpenDocument(ctx, claim.OpenDocumentInput{ClaimID: created.ID, Actor: mgr})
	if err != nil {
		t.Fatalf("OpenDocument error: %v", err)
	}
	_ = doc.Body.Close()
	if doc.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %s", doc.ContentType)
	}

	summary, err := reports.GetReport(ctx, report.GetReportInput{Actor: mgr})
	if err != nil {
		t.Fatalf("GetReport error: %v", err)
	}
	if summary.ApprovedClaims != 1 || summary.TotalLecturers != 1 || !summary.TotalApprovedAmount.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func resetMigrations(dsn, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func configPathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "../assets/local.yaml"
}

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}
