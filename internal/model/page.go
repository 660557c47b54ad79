package model

// Envelope はバックエンドの標準レスポンス {message, data}。
type Envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// PageInfo はページングの付帯情報。pageは0始まり。
type PageInfo struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// Page はページング済みの一覧レスポンス。
type Page[T any] struct {
	Content  []T      `json:"content"`
	PageInfo PageInfo `json:"pageInfo"`
}
