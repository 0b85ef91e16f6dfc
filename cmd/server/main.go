package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/blobstore/filesystem"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/blobstore/s3store"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/grpc/handler"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/adapters/repository/postgres"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/lecturer"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/report"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/config"
	pg "github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/db/postgres"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/logging"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/metrics"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/platform/server"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		logrus.WithError(err).Fatal("failed to load env files")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build logger")
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database pool")
	}
	defer dbPool.Close()

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize document storage")
	}

	txManager := pg.NewTransactionManager(dbPool)
	claimRepo := postgres.NewClaimRepository(dbPool)
	lecturerRepo := postgres.NewLecturerRepository(dbPool)

	claimSvc := claim.NewService(claimRepo, blobs, nil, txManager,
		claim.WithDocumentPolicy(document.Policy{MaxSizeBytes: cfg.Documents.MaxSizeBytes}),
		claim.WithRecorder(metrics.ClaimRecorder{}),
	)
	lecturerSvc := lecturer.NewService(lecturerRepo)
	reportSvc := report.NewService(claimRepo, lecturerSvc, txManager)

	grpcServer := server.New(cfg.Server.ListenAddr, cfg.Server.MetricsAddr, server.Services{
		Claims:  handler.NewClaimGrpcHandler(claimSvc, lecturerSvc),
		Reports: handler.NewReportGrpcHandler(reportSvc),
	}, logger, handler.ServerMessageOptions(cfg.Documents.MaxSizeBytes)...)

	logger.WithFields(logrus.Fields{
		"addr":           cfg.Server.ListenAddr,
		"storage_driver": cfg.Storage.Driver,
	}).Info("gRPC server listening")

	if err := grpcServer.Run(ctx); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (document.BlobStore, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		return filesystem.New(cfg.Local.Root)
	case config.StorageDriverS3:
		return s3store.NewFromConfig(ctx, s3store.Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Prefix:   cfg.S3.Prefix,
			Endpoint: cfg.S3.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
