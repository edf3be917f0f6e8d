// Package core は、GBDの中核となる投稿抽出ロジックを実装します。
// PostExtractor がページングとフィルタリングを駆動し、サイト固有の処理は adapter.SiteAPI に委ねます。
package core

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"GoBooruDownloader/internal/adapter"
	"GoBooruDownloader/internal/blacklist"
	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"

	"golang.org/x/time/rate"
)

// AuthState は、抽出器の認証状態です。
type AuthState int

const (
	NotAuthenticated AuthState = iota
	Authenticated
)

// Options は、PostExtractor の構築時に一度だけ与えられる抽出条件です。
type Options struct {
	Tags             []string          // 検索タグ（全件が正値フィルタの対象）
	Excluded         []string          // 追加の除外タグ
	Ratings          []model.Rating    // 許可するレーティング（空なら全て）
	DisableBlacklist bool              // タグによる除外を無効化
	IgnoreAnimated   bool              // 動画・アニメーションを除外
	ForcedExtension  model.Extension   // ExtUnknown 以外ならその拡張子のみ
	Blacklist        *config.Blacklist // 設定ファイルのブラックリスト
	Logger           *log.Logger       // nil なら log.Default()
}

// PoolDownload は、プールのダウンロード設定です。
type PoolDownload struct {
	PoolID uint64
	Latest bool // true ならプールの末尾（最新）から順に取得
}

// PostExtractor は、1つのサーバーに対する投稿の検索・取得を担います。
// 認証状態とプール設定以外のフィールドは構築後に変更されません。
// 1つのインスタンスを複数のゴルーチンから同時に使用することはできません。
type PostExtractor struct {
	server    config.ServerConfig
	api       adapter.SiteAPI
	client    *network.Client
	logger    *log.Logger
	tagString string
	tags      []string
	opts      Options

	authState AuthState
	auth      *network.BasicAuth
	userTags  []string // 認証ユーザーのブラックリスト

	pool    *PoolDownload
	removed uint64
}

// NewPostExtractor は、検索タグをアダプタで処理し、新しい PostExtractor を返します。
func NewPostExtractor(server config.ServerConfig, api adapter.SiteAPI, client *network.Client, opts Options) *PostExtractor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	tagString, tags := api.ProcessTags(opts.Tags)
	if queried := strings.Fields(tagString); len(queried) < len(tags) {
		logger.Printf("INFO: %s の検索クエリには先頭 %d 件のタグのみを使用し、残りは取得後に照合します。", server.Name, len(queried))
	}
	return &PostExtractor{
		server:    server,
		api:       api,
		client:    client,
		logger:    logger,
		tagString: tagString,
		tags:      tags,
		opts:      opts,
	}
}

// AuthState は、現在の認証状態を返します。
func (e *PostExtractor) AuthState() AuthState { return e.authState }

// Removed は、これまでにフィルタで除外した投稿の累計を返します。
func (e *PostExtractor) Removed() uint64 { return e.removed }

// TagString は、APIクエリに使われるタグ文字列を返します。
func (e *PostExtractor) TagString() string { return e.tagString }

// newFilter は、設定・呼び出し側・認証ユーザーのブラックリストを合成したフィルタを構築します。
func (e *PostExtractor) newFilter() *blacklist.Filter {
	excluded := make([]string, 0, len(e.opts.Excluded)+len(e.userTags))
	excluded = append(excluded, e.opts.Excluded...)
	if e.authState == Authenticated {
		excluded = append(excluded, e.userTags...)
	}
	slices.Sort(excluded)
	excluded = slices.Compact(excluded)

	return blacklist.New(e.opts.Blacklist, blacklist.Options{
		Server:          e.server.Name,
		Excluded:        excluded,
		Ratings:         e.opts.Ratings,
		DisableTags:     e.opts.DisableBlacklist,
		IgnoreAnimated:  e.opts.IgnoreAnimated,
		ForcedExtension: e.opts.ForcedExtension,
	})
}

// pageSize は、1ページあたりに要求する件数を返します。
func (e *PostExtractor) pageSize(limit int) int {
	if limit > 0 && limit < e.server.MaxPostLimit {
		return limit
	}
	return e.server.MaxPostLimit
}

// GetPostList は、1ページ分の投稿を取得して共通モデルに変換します。
// 途中で失敗した場合、部分的な結果は返しません。
func (e *PostExtractor) GetPostList(ctx context.Context, page, limit int) ([]model.Post, error) {
	if page == 0 {
		return nil, model.ErrZeroPage
	}
	reqURL, err := e.api.PostsURL(e.server, page, limit, e.tagString)
	if err != nil {
		return nil, fmt.Errorf("一覧URLの構築に失敗しました (server=%s, page=%d): %w", e.server.Name, page, err)
	}
	body, err := e.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	posts, err := e.api.ParsePostList(body)
	if err != nil {
		return nil, fmt.Errorf("一覧の解析に失敗しました (server=%s, page=%d): %w", e.server.Name, page, err)
	}
	return posts, nil
}

// GetPost は、IDを指定して単一の投稿を取得します。
func (e *PostExtractor) GetPost(ctx context.Context, id uint64) (model.Post, error) {
	reqURL, err := e.api.SinglePostURL(e.server, id)
	if err != nil {
		return model.Post{}, fmt.Errorf("投稿URLの構築に失敗しました (server=%s, id=%d): %w", e.server.Name, id, err)
	}
	body, err := e.get(ctx, reqURL)
	if err != nil {
		return model.Post{}, err
	}
	post, err := e.api.ParseSinglePost(body)
	if err != nil {
		return model.Post{}, fmt.Errorf("投稿の解析に失敗しました (server=%s, id=%d): %w", e.server.Name, id, err)
	}
	return post, nil
}

// GetPosts は、指定IDの投稿をアダプタの待機時間を挟みながら順に取得します。
// 1件でも失敗した時点でエラーを返します。
func (e *PostExtractor) GetPosts(ctx context.Context, ids []uint64) ([]model.Post, error) {
	limiter := newDebounce(e.api.MultiGetDelay())
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		post, err := e.GetPost(ctx, id)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Search は、指定ページを1回だけ取得し、ID降順の PostQueue として返します。
func (e *PostExtractor) Search(ctx context.Context, page int) (*PostQueue, error) {
	posts, err := e.GetPostList(ctx, page, e.server.MaxPostLimit)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w (server=%s, tags=%q, page=%d)", model.ErrZeroPosts, e.server.Name, e.tagString, page)
	}
	model.SortDescending(posts)
	return e.newQueue(posts), nil
}

func (e *PostExtractor) newQueue(posts []model.Post) *PostQueue {
	return &PostQueue{
		Posts:      posts,
		Tags:       slices.Clone(e.tags),
		Imageboard: e.server,
		Client:     e.client,
	}
}

// get は、認証済みであればBasic認証を付与してGETし、通信エラーを ConnectionError に包みます。
func (e *PostExtractor) get(ctx context.Context, reqURL string) ([]byte, error) {
	body, err := e.client.Get(ctx, reqURL, e.auth)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.ConnectionError{URL: reqURL, Err: err}
	}
	return body, nil
}

// newDebounce は、呼び出し間隔を d 以上に保つリミッターを返します。最初の1回は待機しません。
func newDebounce(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}
