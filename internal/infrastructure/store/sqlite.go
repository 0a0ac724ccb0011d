package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bar-inventory-api/internal/core/bar"
	"bar-inventory-api/internal/infrastructure/config"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite 開啟 sqlite 資料庫並套用 schema
func OpenSQLite(cfg *config.StoreConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS owned_ingredients (
			identity_id   TEXT NOT NULL,
			ingredient_id TEXT NOT NULL,
			display_name  TEXT NOT NULL DEFAULT '',
			updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (identity_id, ingredient_id)
		);
		CREATE INDEX IF NOT EXISTS idx_owned_identity ON owned_ingredients(identity_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate owned_ingredients: %w", err)
	}
	return nil
}

// BarStore 以 sqlite 實作帳號層級的持有食材儲存
type BarStore struct {
	db *sql.DB
}

// NewBarStore 創建持有食材儲存
func NewBarStore(db *sql.DB) *BarStore {
	return &BarStore{db: db}
}

var _ bar.RemoteStore = (*BarStore)(nil)

// List 列出一個身份的全部持有食材
func (s *BarStore) List(ctx context.Context, identityID string) ([]bar.OwnedIngredientRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_id, ingredient_id, display_name, updated_at
		FROM owned_ingredients
		WHERE identity_id = ?
		ORDER BY ingredient_id
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list owned ingredients: %w", err)
	}
	defer rows.Close()

	var out []bar.OwnedIngredientRecord
	for rows.Next() {
		var rec bar.OwnedIngredientRecord
		var updated time.Time
		if err := rows.Scan(&rec.IdentityID, &rec.IngredientID, &rec.DisplayName, &updated); err != nil {
			return nil, fmt.Errorf("scan owned ingredient: %w", err)
		}
		rec.UpdatedAt = updated
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	return out, nil
}

// Upsert 以 (identity, ingredient) 為自然鍵插入或更新，重複寫入冪等
func (s *BarStore) Upsert(ctx context.Context, identityID, ingredientID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owned_ingredients (identity_id, ingredient_id, display_name, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(identity_id, ingredient_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = CURRENT_TIMESTAMP
	`, identityID, ingredientID, displayName)
	if err != nil {
		return fmt.Errorf("upsert owned ingredient: %w", err)
	}
	return nil
}

// Delete 刪除單筆持有食材，不存在時不視為錯誤
func (s *BarStore) Delete(ctx context.Context, identityID, ingredientID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM owned_ingredients
		WHERE identity_id = ? AND ingredient_id = ?
	`, identityID, ingredientID)
	if err != nil {
		return fmt.Errorf("delete owned ingredient: %w", err)
	}
	return nil
}

// DeleteAll 刪除一個身份的全部持有食材
func (s *BarStore) DeleteAll(ctx context.Context, identityID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM owned_ingredients
		WHERE identity_id = ?
	`, identityID)
	if err != nil {
		return fmt.Errorf("delete all owned ingredients: %w", err)
	}
	return nil
}
