package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/config"
	dbRedis "github.com/kailas-cloud/syllabus/internal/db/redis"
	logpkg "github.com/kailas-cloud/syllabus/internal/logger"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
)

// session holds what every subcommand needs.
type session struct {
	cfg    *config.Config
	store  *dbRedis.Store
	keys   keyspace.Keyspace
	logger *zap.Logger
}

func (r *session) Close() {
	r.store.Close()
	_ = r.logger.Sync()
}

// openSession loads config and connects to the database.
// Writes need service credentials; restricted mode opens the store read-only.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(envFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(envFlag, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
		ReadOnly: cfg.Database.Restricted(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.WaitForReady(ctx, config.Sec(cfg.Database.ReadinessTimeout)); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	return &session{
		cfg:    &cfg,
		store:  store,
		keys:   keyspace.New(cfg.Database.KeyPrefix),
		logger: logger,
	}, nil
}
