package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"GoBooruDownloader/internal/model"
)

// SetupPoolDownload は、以後の AsyncFetch をプールのダウンロードに切り替えます。
func (e *PostExtractor) SetupPoolDownload(poolID uint64, latest bool) {
	e.pool = &PoolDownload{PoolID: poolID, Latest: latest}
}

// PoolConfig は、現在のプール設定を返します。未設定なら nil です。
func (e *PostExtractor) PoolConfig() *PoolDownload { return e.pool }

// FetchPoolIdxs は、プールの投稿IDとプール内の0始まりの位置を取得します。
// limit が正なら、プール内の順序で先頭 limit 件に絞り込みます。
func (e *PostExtractor) FetchPoolIdxs(ctx context.Context, poolID uint64, limit int) (map[uint64]int, error) {
	reqURL, err := e.api.PoolDetailsURL(e.server, poolID)
	if err != nil {
		return nil, err
	}
	body, err := e.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	order, err := e.api.ParsePoolDetails(body)
	if err != nil {
		return nil, fmt.Errorf("プールの解析に失敗しました (server=%s, pool=%d): %w", e.server.Name, poolID, err)
	}
	if limit <= 0 || len(order) <= limit {
		return order, nil
	}

	ids := sortedByOrder(order)
	truncated := make(map[uint64]int, limit)
	for _, id := range ids[:limit] {
		truncated[id] = order[id]
	}
	return truncated, nil
}

// sortedByOrder は、プール内の位置の昇順に並べた投稿IDを返します。
func sortedByOrder(order map[uint64]int) []uint64 {
	ids := make([]uint64, 0, len(order))
	for id := range order {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uint64) int {
		return order[a] - order[b]
	})
	return ids
}

// poolFetch は、プールの投稿をプール順（Latest なら逆順）に1件ずつ取得して送信します。
// 個々の投稿の取得に失敗した場合は警告を出して次の投稿に進みます。
func (e *PostExtractor) poolFetch(ctx context.Context, out chan<- model.Post, counter chan<- struct{}, limit int) (uint64, error) {
	order, err := e.FetchPoolIdxs(ctx, e.pool.PoolID, 0)
	if err != nil {
		return 0, err
	}

	ids := sortedByOrder(order)
	if e.pool.Latest {
		slices.Reverse(ids)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	e.logger.Printf("INFO: プール %d から %d件の投稿を取得します。", e.pool.PoolID, len(ids))

	filter := e.newFilter()
	limiter := newDebounce(e.api.MultiGetDelay())

	var removed uint64
	sent := 0
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			e.removed += removed
			return removed, err
		}

		post, err := e.GetPost(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.removed += removed
				return removed, err
			}
			e.logger.Printf("WARNING: プール %d の投稿 %d の取得に失敗したためスキップします: %v", e.pool.PoolID, id, err)
			continue
		}

		if !filter.Allows(post) {
			removed++
			continue
		}
		if err := send(ctx, out, counter, post); err != nil {
			e.removed += removed
			return removed, err
		}
		sent++
	}

	e.removed += removed
	if sent == 0 {
		return removed, fmt.Errorf("%w (server=%s, pool=%d)", model.ErrZeroPosts, e.server.Name, e.pool.PoolID)
	}
	return removed, nil
}
