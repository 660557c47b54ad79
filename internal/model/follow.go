package model

// FollowEntry はフォロワー／フォロー中一覧の1件分。
// IsFollowing は閲覧者がこのユーザーをフォローしているか。
// バックエンドの値は信頼できないため、クライアント側で推定し直す。
type FollowEntry struct {
	UserID      int64  `json:"userId"`
	Nickname    string `json:"nickname"`
	IsFollowing bool   `json:"isFollowing"`
}

// FollowResult はPOST/DELETE /users/{id}/followsのレスポンス。
// フォロー時はFollowingID、解除時はUnfollowedIDが埋まる。
type FollowResult struct {
	FollowingID        int64  `json:"followingId,omitempty"`
	FollowingNickname  string `json:"followingNickname,omitempty"`
	UnfollowedID       int64  `json:"unfollowedId,omitempty"`
	UnfollowedNickname string `json:"unfollowedNickname,omitempty"`
}

// FollowCounts はプロフィールに表示するフォロワー数とフォロー数。
type FollowCounts struct {
	Followers  int64 `json:"followers"`
	Followings int64 `json:"followings"`
}
