package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/config"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const pingInterval = time.Second

// NewConnection opens the pool and waits up to cfg.ConnectTimeout for the
// server to answer, so the API can start alongside its database container.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForPing(ctx, db, cfg.ConnectTimeout); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func waitForPing(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := db.PingContext(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("database not ready")
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", err)
		case <-time.After(pingInterval):
		}
	}
}
