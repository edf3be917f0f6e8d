package core

import (
	"slices"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"
)

// PostQueue は、バッチ検索の結果です。Posts は常にID降順に並びます。
type PostQueue struct {
	Posts      []model.Post
	Tags       []string // 元の検索タグ
	Imageboard config.ServerConfig
	Client     *network.Client
}

// Prepare は、limit が正であれば先頭 limit 件に切り詰め、余分な容量を解放します。
// 並び順は変更しません。
func (q *PostQueue) Prepare(limit int) {
	if limit > 0 && len(q.Posts) > limit {
		q.Posts = q.Posts[:limit]
	}
	q.Posts = slices.Clip(q.Posts)
}

// Len は、キュー内の投稿数を返します。
func (q *PostQueue) Len() int { return len(q.Posts) }
