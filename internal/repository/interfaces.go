// Package repository はクライアント状態の永続化インターフェースを定義する。
package repository

import "context"

// Entry はキーと値の組。
type Entry struct {
	Key   string
	Value string
}

// KVRepository は永続キーバリューストアのインターフェース。
// ブラウザのlocalStorageに相当する外部コラボレーターとして扱う。
type KVRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Put は複数エントリを1トランザクションで書き込む。既存キーは上書きする。
	Put(ctx context.Context, entries ...Entry) error

	// Delete は指定キーを削除する。存在しないキーはエラーにしない。
	Delete(ctx context.Context, keys ...string) error
}
