package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestRunMigrations_SQLite_CreatesClientKVTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	db, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'client_kv'`).Scan(&name)
	if err != nil {
		t.Fatalf("client_kvテーブルが存在しない: %v", err)
	}
}

// TestRunMigrations_SQLite_Idempotent は2回目の実行がErrNoChangeを握りつぶして成功することを検証する。
func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("1回目のRunMigrationsが失敗: %v", err)
	}
	if err := RunMigrations(DriverSQLite, path); err != nil {
		t.Fatalf("2回目のRunMigrationsが失敗: %v", err)
	}
}

// TestRunMigrations_Postgres はTEST_DATABASE_URLが設定されている場合のみ実行する。
func TestRunMigrations_Postgres(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URLが未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	if _, err := db.Exec(`DROP TABLE IF EXISTS client_kv; DROP TABLE IF EXISTS schema_migrations;`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	if err := RunMigrations(DriverPostgres, dbURL); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	var exists bool
	err = db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'client_kv')`).Scan(&exists)
	if err != nil || !exists {
		t.Fatalf("client_kvテーブルが作成されていない: exists=%v err=%v", exists, err)
	}
}
