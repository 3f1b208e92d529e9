package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/bryanwahyu/medreport/internal/application"
	appanalysis "github.com/bryanwahyu/medreport/internal/application/analysis"
	"github.com/bryanwahyu/medreport/internal/application/dashboard"
	appreports "github.com/bryanwahyu/medreport/internal/application/reports"
	"github.com/bryanwahyu/medreport/internal/application/session"
	"github.com/bryanwahyu/medreport/internal/config"
	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/ai/heuristic"
	aiopenai "github.com/bryanwahyu/medreport/internal/infra/ai/openai"
	"github.com/bryanwahyu/medreport/internal/infra/charts"
	mysqlp "github.com/bryanwahyu/medreport/internal/infra/db/mysql"
	"github.com/bryanwahyu/medreport/internal/infra/db/postgres"
	"github.com/bryanwahyu/medreport/internal/infra/db/sqlite"
	"github.com/bryanwahyu/medreport/internal/infra/engine"
	"github.com/bryanwahyu/medreport/internal/infra/predict"
	"github.com/bryanwahyu/medreport/internal/infra/report"
	"github.com/bryanwahyu/medreport/internal/infra/storage"
	"github.com/bryanwahyu/medreport/internal/middleware"
)

type app struct {
	dashboard *dashboard.Service
	sessions  *session.Manager
	checkers  map[string]middleware.HealthChecker
	closers   []func() error
}

func (a *app) close(logger zerolog.Logger) {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Error().Err(err).Msg("close")
		}
	}
}

type store struct {
	repo  reports.Repository
	close func() error
}

// openStore connects the configured report store and applies its schema.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect error: %w", err)
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("mysql migrate: %w", err)
		}
		return &store{repo: mysqlp.NewReportRepository(db), close: db.Close}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect error: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &store{repo: postgres.NewReportRepository(db), close: db.Close}, nil
	default:
		db, err := sqlite.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open error: %w", err)
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return &store{repo: sqlite.NewReportRepository(db), close: db.Close}, nil
	}
}

// openAreas returns the upload and report areas of the configured backend.
func openAreas(ctx context.Context, cfg *config.Config) (artifacts.Area, artifacts.Area, error) {
	if cfg.Storage.Backend == "minio" {
		st, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("minio init error: %w", err)
		}
		return st.Area(cfg.Storage.UploadPrefix), st.Area(cfg.Storage.ReportPrefix), nil
	}

	fs := afero.NewOsFs()
	up, err := storage.NewLocalArea(fs, filepath.Join(cfg.Storage.Root, cfg.Storage.UploadPrefix))
	if err != nil {
		return nil, nil, err
	}
	out, err := storage.NewLocalArea(fs, filepath.Join(cfg.Storage.Root, cfg.Storage.ReportPrefix))
	if err != nil {
		return nil, nil, err
	}
	return up, out, nil
}

// newGenerator uses the language model when an API key is configured, the built-in rules otherwise.
func newGenerator(ctx context.Context, cfg *config.Config) analysis.Generator {
	if cfg.OpenAI.APIKey == "" {
		zerolog.Ctx(ctx).Warn().Msg("openai.api_key not set, using rule-based insights")
		return heuristic.New()
	}
	return &engine.LLMGenerator{Client: aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{closers: []func() error{st.close}}

	uploads, out, err := openAreas(ctx, cfg)
	if err != nil {
		st.close()
		return nil, err
	}

	eng := engine.New(newGenerator(ctx, cfg), &predict.Bayes{
		Target:    cfg.Analysis.TargetColumn,
		TestEvery: cfg.Analysis.TestEvery,
	})
	analysisSvc := appanalysis.NewService(eng)
	analysisSvc.Timeout = cfg.Analysis.Timeout

	a.dashboard = &dashboard.Service{
		Uploads:   uploads,
		Reports:   out,
		Analysis:  analysisSvc,
		Store:     appreports.NewService(st.repo, application.SystemClock{}),
		Assembler: report.New(uploads, out),
		Charts:    charts.Renderer{},
		Clock:     application.SystemClock{},
		MaxUpload: cfg.MaxUploadBytes(),
	}
	a.sessions = session.NewManager(cfg.Session.TTL)
	a.checkers = map[string]middleware.HealthChecker{
		"database": middleware.CheckerFunc(st.repo.Ping),
		"storage":  middleware.CheckerFunc(out.Check),
	}
	return a, nil
}
