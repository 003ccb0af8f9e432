package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store owns the connection pool. Every multi-statement write goes through
// WithTx so rollback and connection release happen on every exit path.
type Store struct {
	DB           *gorm.DB
	QueryTimeout time.Duration
	TxAttempts   int
	TxRetryDelay time.Duration
	Logger       *slog.Logger
}

// NewStore wraps an already opened gorm handle.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		DB:           db,
		QueryTimeout: 10 * time.Second,
		TxAttempts:   3,
		TxRetryDelay: 100 * time.Millisecond,
		Logger:       logger,
	}
}

// Connect opens the PostgreSQL pool, retrying the initial connection with a
// fixed delay, and applies the pool limits from cfg.
func Connect(cfg config.DatastoreConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.ConnectMaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err = open(cfg)
		if err == nil {
			logger.Info("connected to datastore",
				"event", "datastore_connected",
				"module", "database",
				"layer", "platform",
				"attempt", attempt,
			)
			break
		}
		if attempt == attempts {
			logger.Error("datastore connection failed",
				"event", "datastore_connect_failed",
				"module", "database",
				"layer", "platform",
				"attempt", attempt,
				"error", err.Error(),
			)
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "connect datastore", err)
		}
		logger.Warn("datastore connection failed, retrying",
			"event", "datastore_connect_retry",
			"module", "database",
			"layer", "platform",
			"attempt", attempt,
			"max_attempts", attempts,
			"retry_delay", cfg.ConnectRetryDelay.String(),
			"error", err.Error(),
		)
		time.Sleep(cfg.ConnectRetryDelay)
	}

	store := NewStore(db, logger)
	if cfg.QueryTimeout > 0 {
		store.QueryTimeout = cfg.QueryTimeout
	}
	if cfg.ConnectMaxRetries > 0 {
		store.TxAttempts = cfg.ConnectMaxRetries
	}
	if cfg.ConnectRetryDelay > 0 {
		store.TxRetryDelay = cfg.ConnectRetryDelay
	}
	return store, nil
}

func open(cfg config.DatastoreConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	if cfg.PoolMax > 0 {
		sqlDB.SetMaxOpenConns(cfg.PoolMax)
		sqlDB.SetMaxIdleConns(cfg.PoolMax)
	}
	if cfg.PoolIdle > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.PoolIdle)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// WithTx runs fn inside one transaction bounded by the query timeout.
// fn's error (or a panic) rolls back; otherwise the transaction commits.
// Failing to begin is retried a bounded number of times and then reported
// as store_unavailable.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) {
				s.Logger.Error("transaction rollback failed",
					"event", "datastore_rollback_failed",
					"module", "database",
					"layer", "platform",
					"error", rbErr.Error(),
				)
			}
			err = classify(err)
			return
		}
		if e := tx.Commit().Error; e != nil {
			err = apperrors.Wrap(apperrors.KindStoreUnavailable, "commit transaction", e)
		}
	}()

	err = fn(tx)
	return err
}

// Read runs a read-only function against the pool with the query timeout.
func (s *Store) Read(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(fn(s.DB.WithContext(ctx)))
}

// Ping reports datastore round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		return 0, apperrors.Wrap(apperrors.KindStoreUnavailable, "ping datastore", err)
	}
	return time.Since(start), nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) begin(ctx context.Context) (*gorm.DB, error) {
	attempts := s.TxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		tx := s.DB.WithContext(ctx).Begin()
		if tx.Error == nil {
			return tx, nil
		}
		if attempt >= attempts || ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "begin transaction", tx.Error)
		}
		s.Logger.Warn("begin transaction failed, retrying",
			"event", "datastore_begin_retry",
			"module", "database",
			"layer", "platform",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", tx.Error.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.KindStoreUnavailable, "begin transaction", ctx.Err())
		case <-time.After(s.TxRetryDelay * time.Duration(attempt)):
		}
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.QueryTimeout)
}

// classify turns deadline errors into the retryable store_unavailable kind
// and leaves already classified errors alone.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, "datastore timeout", err)
	}
	return err
}
