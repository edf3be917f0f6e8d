package core

import (
	"context"
	"fmt"

	"GoBooruDownloader/internal/model"
)

// FullSearch は、startPage から順にページを巡回し、フィルタを通過した投稿を集めて返します。
// limit が正ならその件数に達した時点で終了します。0 は無制限です。
// 1件も集まらなかった場合は model.ErrZeroPosts を返します。
func (e *PostExtractor) FullSearch(ctx context.Context, startPage, limit int) (*PostQueue, error) {
	if startPage == 0 {
		return nil, model.ErrZeroPage
	}

	filter := e.newFilter()
	pageSize := e.pageSize(limit)
	limiter := newDebounce(e.api.FullSearchDelay())
	pageCap := e.api.FullSearchPageLimit()

	var collected []model.Post
	for page, fetched := startPage, 0; fetched < pageCap; page, fetched = page+1, fetched+1 {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		posts, err := e.GetPostList(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			break
		}

		removed, kept := filter.Apply(posts)
		e.removed += removed
		collected = append(collected, kept...)
		e.logger.Printf("INFO: ページ %d: %d件取得、%d件除外 (累計 %d件)", page, len(posts), removed, len(collected))

		if limit > 0 && len(collected) >= limit {
			collected = collected[:limit]
			break
		}
		// 開始ページでは件数が少なくても最終ページとみなさない
		if fetched > 0 && e.api.PostLimitBreak(len(posts), pageSize) {
			break
		}
		if fetched+1 == pageCap {
			e.logger.Printf("WARNING: ページ数の上限 (%d) に達したため検索を打ち切ります。", pageCap)
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf("%w (server=%s, tags=%q)", model.ErrZeroPosts, e.server.Name, e.tagString)
	}

	model.SortDescending(collected)
	queue := e.newQueue(collected)
	queue.Prepare(limit)
	return queue, nil
}
