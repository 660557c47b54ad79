package follow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/blogclient/internal/model"
)

// Counts はフォロワー数とフォロー数を取得する。
// 件数専用のAPIがないため、size=1の一覧取得のtotalElementsを使う。
func (s *Service) Counts(ctx context.Context, userID int64) (model.FollowCounts, error) {
	var counts model.FollowCounts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.backend.ListFollowers(gctx, userID, 0, 1)
		if err != nil {
			return err
		}
		counts.Followers = page.PageInfo.TotalElements
		return nil
	})
	g.Go(func() error {
		page, err := s.backend.ListFollowings(gctx, userID, 0, 1)
		if err != nil {
			return err
		}
		counts.Followings = page.PageInfo.TotalElements
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.FollowCounts{}, err
	}
	return counts, nil
}

// Followers はuserIDのフォロワー一覧を取得し、各エントリのIsFollowingを推定し直す。
func (s *Service) Followers(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
	p, err := s.backend.ListFollowers(ctx, userID, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, p.Content)
	return p, nil
}

// Followings はuserIDがフォローしているユーザー一覧を取得し、各エントリのIsFollowingを推定し直す。
func (s *Service) Followings(ctx context.Context, userID int64, page int) (*model.Page[model.FollowEntry], error) {
	p, err := s.backend.ListFollowings(ctx, userID, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, p.Content)
	return p, nil
}

// enrich は閲覧者から見たフォロー状態を各エントリに埋める。
// 未ログインなら全件false。閲覧者自身のエントリは推定しない。
func (s *Service) enrich(ctx context.Context, entries []model.FollowEntry) {
	snap := s.session.Current()
	if !snap.IsAuthenticated() {
		for i := range entries {
			entries[i].IsFollowing = false
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(s.probeConcurrency)
	for i := range entries {
		if entries[i].UserID == snap.UserID() {
			continue
		}
		g.Go(func() error {
			entries[i].IsFollowing = s.probe(ctx, entries[i].UserID).Following()
			return nil
		})
	}
	_ = g.Wait()
}
