package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"GoBooruDownloader/internal/adapter"
	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/core"
	"GoBooruDownloader/internal/download"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"
	"GoBooruDownloader/internal/summary"

	"golang.org/x/sync/errgroup"
)

// runOptions は、1回の実行に必要な条件をまとめたものです。
type runOptions struct {
	Server           string
	Tags             []string
	Excluded         []string
	Ratings          []model.Rating
	DisableBlacklist bool
	MapVideos        bool
	IgnoreAnimated   bool
	ForcedExtension  model.Extension
	Limit            int
	StartPage        int
	PoolID           uint64
	Latest           bool
	PostIDs          []uint64
	Async            bool
	Auth             bool
	EnvFile          string
	OutputDir        string
	Update           bool
}

// runner は、1回の実行で使うコンポーネントを保持します。
type runner struct {
	opts      runOptions
	server    config.ServerConfig
	extractor *core.PostExtractor
	queue     *download.Queue
	progress  *download.LogProgress
	store     *summary.Store
	logger    *log.Logger
}

// executeRun は、検索・取得からダウンロードまでの1回分の処理を実行します。
func executeRun(ctx context.Context, cfg *config.Config, opts runOptions) error {
	server, err := cfg.Server(opts.Server)
	if err != nil {
		return err
	}

	logger := log.New(log.Writer(), fmt.Sprintf("[%s] ", server.Name), log.LstdFlags)
	logger.Println("実行を開始します。")

	// --- コンポーネントの初期化 ---
	settings := cfg.Network
	if server.ClientUserAgent != "" {
		settings.UserAgent = server.ClientUserAgent
	}
	client, err := network.NewClient(settings)
	if err != nil {
		return fmt.Errorf("ネットワーククライアントの初期化に失敗しました: %w", err)
	}

	api, err := adapter.GetAdapter(server, adapter.Options{MapVideos: opts.MapVideos})
	if err != nil {
		return err
	}

	extractor := core.NewPostExtractor(server, api, client, core.Options{
		Tags:             opts.Tags,
		Excluded:         opts.Excluded,
		Ratings:          opts.Ratings,
		DisableBlacklist: opts.DisableBlacklist,
		IgnoreAnimated:   opts.IgnoreAnimated,
		ForcedExtension:  opts.ForcedExtension,
		Blacklist:        &cfg.Blacklist,
		Logger:           logger,
	})

	if opts.Auth {
		creds, err := config.LoadCredentials(server.Name, opts.EnvFile)
		if err != nil {
			return err
		}
		if creds == nil {
			logger.Println("WARNING: 資格情報が設定されていないため、認証せずに続行します。")
		} else if err := extractor.Auth(ctx, creds); err != nil {
			return err
		} else {
			logger.Printf("INFO: ユーザー '%s' として認証しました。", creds.Username)
		}
	}

	store, err := summary.Open(cfg.Download.SummaryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	progress := download.NewLogProgress(logger)
	r := &runner{
		opts:      opts,
		server:    server,
		extractor: extractor,
		progress:  progress,
		store:     store,
		logger:    logger,
		queue: &download.Queue{
			Client:        client,
			Settings:      cfg.Download,
			Dir:           filepath.Join(opts.OutputDir, server.Name, targetDirName(opts)),
			Recorder:      store,
			Progress:      progress,
			Logger:        logger,
			SkipHashCheck: opts.MapVideos,
		},
	}

	switch {
	case len(opts.PostIDs) > 0:
		err = r.runPosts(ctx)
	case opts.PoolID != 0:
		extractor.SetupPoolDownload(opts.PoolID, opts.Latest)
		err = r.runStream(ctx)
	case opts.Async:
		err = r.runStream(ctx)
	default:
		err = r.runBatch(ctx)
	}

	stats := progress.Stats()
	logger.Printf("INFO: 除外した投稿: %d件 / 保存先: %s", extractor.Removed(), r.queue.Dir)
	logger.Println(stats.FormatSessionInfo())
	return err
}

// runPosts は、ID指定の投稿を取得して保存します。フィルタは適用しません。
func (r *runner) runPosts(ctx context.Context) error {
	posts, err := r.extractor.GetPosts(ctx, r.opts.PostIDs)
	if err != nil {
		return err
	}
	return r.queue.RunBatch(ctx, posts)
}

// runBatch は、全ページを検索し終えてからダウンロードを開始します。
func (r *runner) runBatch(ctx context.Context) error {
	pq, err := r.extractor.FullSearch(ctx, r.opts.StartPage, r.opts.Limit)
	if err != nil {
		return err
	}
	posts := pq.Posts

	query := summary.QueryKey(pq.Tags)
	if r.opts.Update {
		last, ok, err := r.store.LastPostID(ctx, r.server.Name, query)
		if err != nil {
			return err
		}
		if ok {
			posts = summary.FilterNewer(posts, last)
			r.logger.Printf("INFO: 前回の実行 (最終ID %d) 以降の新しい投稿: %d件", last, len(posts))
		}
		if len(posts) == 0 {
			r.logger.Println("INFO: 新しい投稿はありません。")
			return nil
		}
	}

	if err := r.queue.RunBatch(ctx, posts); err != nil {
		return err
	}
	return r.store.RecordRun(ctx, r.server.Name, query, pq.Posts[0].ID)
}

// runStream は、検索とダウンロードを並行して行います。
// 抽出器が送信した投稿は中継ゴルーチンを経由してダウンロードキューに渡されます。
func (r *runner) runStream(ctx context.Context) error {
	query := summary.QueryKey(r.opts.Tags)
	var last uint64
	if r.opts.Update && r.opts.PoolID == 0 {
		id, ok, err := r.store.LastPostID(ctx, r.server.Name, query)
		if err != nil {
			return err
		}
		if ok {
			last = id
		}
	}

	buffer := r.queue.Settings.Concurrency * 2
	fetched := make(chan model.Post, buffer)
	counter := make(chan struct{}, buffer)
	toQueue := make(chan model.Post, buffer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fetched)
		defer close(counter)
		_, err := r.extractor.AsyncFetch(gctx, fetched, counter, r.opts.StartPage, r.opts.Limit)
		return err
	})

	g.Go(func() error {
		for range counter {
			r.progress.AddTotal(1)
		}
		return nil
	})

	var maxID uint64
	g.Go(func() error {
		defer close(toQueue)
		for post := range fetched {
			maxID = max(maxID, post.ID)
			if last > 0 && post.ID <= last {
				continue
			}
			select {
			case toQueue <- post:
			case <-gctx.Done():
				// 抽出側が送信待ちで止まらないよう、残りは読み捨てる
				for range fetched {
				}
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		return r.queue.Run(gctx, toQueue)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if r.opts.PoolID != 0 {
		return nil
	}
	if err := r.store.RecordRun(ctx, r.server.Name, query, maxID); err != nil {
		return fmt.Errorf("実行履歴の記録に失敗しました: %w", err)
	}
	return nil
}

// targetDirName は、実行条件から保存先のサブディレクトリ名を決めます。
func targetDirName(opts runOptions) string {
	switch {
	case len(opts.PostIDs) > 0:
		return "posts"
	case opts.PoolID != 0:
		return fmt.Sprintf("pool_%d", opts.PoolID)
	}
	name := download.SanitizeFilename(strings.Join(opts.Tags, " "))
	if strings.TrimSpace(name) == "" {
		return "_all"
	}
	return name
}

