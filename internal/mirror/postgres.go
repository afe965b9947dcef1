package mirror

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/example/linguaquest/pkg/models"
)

// PostgresMirror stores one metrics row per user in a remote Postgres database
type PostgresMirror struct {
	db *sqlx.DB
}

// ConnectPostgres connects to the remote database and prepares the schema
func ConnectPostgres(databaseURL string) (*PostgresMirror, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote database: %v", err)
	}

	m := &PostgresMirror{db: db}
	if err := m.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// Close closes the remote connection
func (m *PostgresMirror) Close() error {
	return m.db.Close()
}

// DB exposes the underlying connection so other components, such as the
// account store, can share it
func (m *PostgresMirror) DB() *sqlx.DB {
	return m.db
}

func (m *PostgresMirror) initializeSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_metrics (
			user_id TEXT PRIMARY KEY,
			xp INTEGER NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_metrics table: %v", err)
	}
	return nil
}

// SaveMetrics upserts the {xp, streak, updated_at} triple for the user.
// Only these columns are touched, so any other remote fields are preserved.
func (m *PostgresMirror) SaveMetrics(ctx context.Context, userID string, metrics models.UserMetrics) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO user_metrics (user_id, xp, streak, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			xp = EXCLUDED.xp,
			streak = EXCLUDED.streak,
			updated_at = EXCLUDED.updated_at
	`, userID, metrics.XP, metrics.Streak, metrics.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save metrics for user %s: %v", userID, err)
	}
	return nil
}

// LoadMetrics reads the metrics document for the user
func (m *PostgresMirror) LoadMetrics(ctx context.Context, userID string) (models.UserMetrics, bool, error) {
	var metrics models.UserMetrics
	err := m.db.GetContext(ctx, &metrics,
		"SELECT xp, streak, updated_at FROM user_metrics WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return models.UserMetrics{}, false, nil
	}
	if err != nil {
		return models.UserMetrics{}, false, fmt.Errorf("failed to load metrics for user %s: %v", userID, err)
	}
	return metrics, true, nil
}
