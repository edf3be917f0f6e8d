package core

import (
	"context"
	"fmt"
	"strings"

	"GoBooruDownloader/internal/model"
)

// AsyncFetch は、フィルタを通過した投稿を1件ずつ out に送信し、除外した件数を返します。
// プールが設定されていればプール順に、そうでなければタグ検索の結果を送信します。
// counter が nil でなければ、送信1件ごとに1回通知します。
// out と counter は閉じません。受信側がいなくなった場合は ctx をキャンセルしてください。
func (e *PostExtractor) AsyncFetch(ctx context.Context, out chan<- model.Post, counter chan<- struct{}, startPage, limit int) (uint64, error) {
	if e.pool != nil {
		return e.poolFetch(ctx, out, counter, limit)
	}
	return e.searchFetch(ctx, out, counter, startPage, limit)
}

// searchFetch は、FullSearch と同じページ巡回を行い、さらに全検索タグを持つ投稿のみを送信します。
func (e *PostExtractor) searchFetch(ctx context.Context, out chan<- model.Post, counter chan<- struct{}, startPage, limit int) (uint64, error) {
	if startPage == 0 {
		return 0, model.ErrZeroPage
	}

	filter := e.newFilter()
	required := newTagMatcher(e.tags)
	pageSize := e.pageSize(limit)
	limiter := newDebounce(e.api.FullSearchDelay())
	pageCap := e.api.FullSearchPageLimit()

	var removed uint64
	sent := 0
	for page, fetched := startPage, 0; fetched < pageCap; page, fetched = page+1, fetched+1 {
		if err := limiter.Wait(ctx); err != nil {
			return removed, err
		}

		posts, err := e.GetPostList(ctx, page, pageSize)
		if err != nil {
			return removed, err
		}
		if len(posts) == 0 {
			break
		}

		n, kept := filter.Apply(posts)
		removed += n
		for _, post := range kept {
			if !required.matches(post) {
				removed++
				continue
			}
			if err := send(ctx, out, counter, post); err != nil {
				e.removed += removed
				return removed, err
			}
			sent++
			if limit > 0 && sent >= limit {
				e.removed += removed
				return removed, nil
			}
		}

		// 開始ページでは件数が少なくても最終ページとみなさない
		if fetched > 0 && e.api.PostLimitBreak(len(posts), pageSize) {
			break
		}
	}

	e.removed += removed
	if sent == 0 {
		return removed, fmt.Errorf("%w (server=%s, tags=%q)", model.ErrZeroPosts, e.server.Name, e.tagString)
	}
	return removed, nil
}

// send は、ctx がキャンセルされるまで out への送信を待ちます。
func send(ctx context.Context, out chan<- model.Post, counter chan<- struct{}, post model.Post) error {
	select {
	case out <- post:
	case <-ctx.Done():
		return ctx.Err()
	}
	if counter == nil {
		return nil
	}
	select {
	case counter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tagMatcher は、検索タグのうちクライアント側で照合できるものを保持します。
// "-tag" は除外条件として、"rating:s" のようなメタタグや "*"・"~" を含むタグはAPIに任せます。
type tagMatcher struct {
	include []string
	exclude []string
}

func newTagMatcher(tags []string) tagMatcher {
	var m tagMatcher
	for _, tag := range tags {
		switch {
		case strings.HasPrefix(tag, "-"):
			t := strings.TrimPrefix(tag, "-")
			if t != "" && !isMetaTerm(t) {
				m.exclude = append(m.exclude, t)
			}
		case isMetaTerm(tag):
		default:
			m.include = append(m.include, tag)
		}
	}
	return m
}

func isMetaTerm(tag string) bool {
	return strings.ContainsAny(tag, ":*~")
}

func (m tagMatcher) matches(p model.Post) bool {
	for _, t := range m.include {
		if !p.HasTag(t) {
			return false
		}
	}
	for _, t := range m.exclude {
		if p.HasTag(t) {
			return false
		}
	}
	return true
}
