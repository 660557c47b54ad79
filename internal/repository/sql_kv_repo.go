package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/blogclient/internal/database"
)

// SQLKVRepo はclient_kvテーブルを使用したKVRepositoryの実装。
// SQLiteとPostgreSQLの両方で動作し、差はプレースホルダの書式のみ。
type SQLKVRepo struct {
	db     *sql.DB
	driver database.Driver
	now    func() time.Time
}

// NewSQLKVRepo はSQLKVRepoを生成する。
func NewSQLKVRepo(db *sql.DB, driver database.Driver) *SQLKVRepo {
	return &SQLKVRepo{
		db:     db,
		driver: driver,
		now:    time.Now,
	}
}

// placeholder はn番目（1始まり）のバインド変数を返す。
func (r *SQLKVRepo) placeholder(n int) string {
	if r.driver == database.DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Get は指定キーの値を取得する。
func (r *SQLKVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM client_kv WHERE key = `+r.placeholder(1),
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get client state %q: %w", key, err)
	}

	return value, true, nil
}

// Put は複数エントリを1トランザクションでUPSERTする。
func (r *SQLKVRepo) Put(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		`INSERT INTO client_kv (key, value, updated_at) VALUES (%s, %s, %s)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		r.placeholder(1), r.placeholder(2), r.placeholder(3),
	)

	updatedAt := r.now().UnixMilli()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query, e.Key, e.Value, updatedAt); err != nil {
			return fmt.Errorf("failed to put client state %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit client state: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *SQLKVRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = r.placeholder(i + 1)
		args[i] = k
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_kv WHERE key IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete client state: %w", err)
	}
	return nil
}

// compile-time interface check
var _ KVRepository = (*SQLKVRepo)(nil)
