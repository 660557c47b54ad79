// Package credential はログイン中ユーザーの識別情報を永続KVストアに保存する。
//
// レコードは "user" と "userDetail" の2キーで構成され、どちらかが欠けている、
// またはデコードできない場合はレコード全体を存在しないものとして扱い、削除する。
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogclient/internal/model"
	"github.com/hitoshi/blogclient/internal/repository"
)

const (
	// KeyUser は識別情報を保存するキー。
	KeyUser = "user"
	// KeyUserDetail はプロフィールを保存するキー。
	KeyUserDetail = "userDetail"
	// KeyCookies はバックエンドのセッションCookieを保存するキー。
	// ブラウザと違いCLIプロセスはCookieを保持しないため、レコードと一緒に扱う。
	KeyCookies = "sessionCookies"
)

// Record は永続化されたログイン情報の組。
type Record struct {
	Identity model.Identity
	Profile  model.UserDetail
}

// savedCookie はJSON保存用のCookie表現。
type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Store は永続化レコードの読み書きを行う。
// 書き込みはセッションストアとゲートウェイのインターセプタのみが行う。
type Store struct {
	repo   repository.KVRepository
	logger *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(repo repository.KVRepository, logger *slog.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Save は識別情報とプロフィールを1トランザクションで保存する。
func (s *Store) Save(ctx context.Context, rec Record) error {
	userJSON, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	detailJSON, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	return s.repo.Put(ctx,
		repository.Entry{Key: KeyUser, Value: string(userJSON)},
		repository.Entry{Key: KeyUserDetail, Value: string(detailJSON)},
	)
}

// Load は保存済みレコードを読み込む。
// レコードが存在しない場合はnilを返す。
// 片方のキーだけ存在する、またはJSONが壊れている場合は
// レコードを削除したうえでnilを返す。
func (s *Store) Load(ctx context.Context) (*Record, error) {
	userJSON, userFound, err := s.repo.Get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	detailJSON, detailFound, err := s.repo.Get(ctx, KeyUserDetail)
	if err != nil {
		return nil, err
	}

	if !userFound && !detailFound {
		return nil, nil
	}

	var rec Record
	corrupt := !userFound || !detailFound
	if !corrupt {
		if err := json.Unmarshal([]byte(userJSON), &rec.Identity); err != nil {
			corrupt = true
		} else if err := json.Unmarshal([]byte(detailJSON), &rec.Profile); err != nil {
			corrupt = true
		} else if rec.Identity.UserID == 0 {
			corrupt = true
		}
	}

	if corrupt {
		s.logger.Warn("保存済みログイン情報が不完全なため破棄します",
			slog.Bool("user_found", userFound),
			slog.Bool("user_detail_found", detailFound),
		)
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &rec, nil
}

// Clear はレコードとセッションCookieを削除する。
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, KeyUser, KeyUserDetail, KeyCookies); err != nil {
		return fmt.Errorf("failed to clear credential record: %w", err)
	}
	return nil
}

// SaveCookies はバックエンドのCookieを保存する。空の場合は削除する。
func (s *Store) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return s.repo.Delete(ctx, KeyCookies)
	}
	saved := make([]savedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	return s.repo.Put(ctx, repository.Entry{Key: KeyCookies, Value: string(data)})
}

// LoadCookies は保存済みCookieを読み込む。壊れている場合は破棄して空を返す。
func (s *Store) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	data, found, err := s.repo.Get(ctx, KeyCookies)
	if err != nil || !found {
		return nil, err
	}

	var saved []savedCookie
	if err := json.Unmarshal([]byte(data), &saved); err != nil {
		s.logger.Warn("保存済みCookieが壊れているため破棄します",
			slog.String("error", err.Error()),
		)
		return nil, s.repo.Delete(ctx, KeyCookies)
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies, nil
}
