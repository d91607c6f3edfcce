package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tierline/tierline/internal/docstore"
	"github.com/tierline/tierline/internal/hierarchy"
	"github.com/tierline/tierline/internal/portal"
	"github.com/tierline/tierline/internal/program"
	"github.com/tierline/tierline/internal/reports"
	"github.com/tierline/tierline/internal/reports/export"
)

// Services bundles the domain services shared by the server, worker and CLI.
type Services struct {
	Location   *time.Location
	Format     export.Format
	Repository *program.Repository
	Levels     *hierarchy.Builder
	Reports    *reports.Service
	Portal     *portal.Service
}

// NewServices builds the domain services over store. registerer may be nil,
// in which case report metrics are not collected.
func NewServices(cfg *Config, store docstore.Store, registerer prometheus.Registerer, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	locale, err := cfg.Locale()
	if err != nil {
		return nil, err
	}

	profiles := reports.DefaultProfiles()
	if cfg.ReportsProfileFile != "" {
		profiles, err = reports.LoadProfiles(cfg.ReportsProfileFile)
		if err != nil {
			return nil, fmt.Errorf("app: deduction profiles: %w", err)
		}
	}
	var metrics *reports.Metrics
	if registerer != nil {
		metrics, err = reports.NewMetrics(registerer)
		if err != nil {
			return nil, fmt.Errorf("app: report metrics: %w", err)
		}
	}

	repo := program.NewRepository(store, logger)
	return &Services{
		Location:   loc,
		Format:     export.Format{Mode: export.ModeRaw, Symbol: cfg.CurrencySymbol, Lang: locale},
		Repository: repo,
		Levels: hierarchy.NewBuilder(repo, hierarchy.Options{
			MaxDepth:     cfg.LevelMaxDepth,
			FetchTimeout: cfg.FetchTimeout,
			Logger:       logger,
		}),
		Reports: reports.NewService(repo, reports.Config{
			Concurrency:  cfg.FetchConcurrency,
			FetchTimeout: cfg.FetchTimeout,
			Location:     loc,
			Profiles:     profiles,
			Logger:       logger,
			Metrics:      metrics,
		}),
		Portal: portal.NewService(repo, portal.Options{Location: loc, Logger: logger}),
	}, nil
}
