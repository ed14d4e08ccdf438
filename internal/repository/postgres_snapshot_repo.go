package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Load は指定キーのスナップショットを取得する。キーが存在しない場合はfound=falseを返す。
func (r *PostgresSnapshotRepo) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM workshop_snapshots WHERE key = $1`,
		key,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return []byte(data), true, nil
}

// Save は指定キーのスナップショットをUPSERTで保存する。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workshop_snapshots (key, data, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
