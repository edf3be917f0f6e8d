// Package download は、抽出済みの投稿のファイルを並行してフォルダに保存するダウンロードキューと、
// 保存済みファイルの検証を提供します。
package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"

	"golang.org/x/sync/errgroup"
)

// Recorder は、ダウンロード済み投稿の記録先です。summary.Store が実装します。
type Recorder interface {
	HasDownloaded(ctx context.Context, server string, postID uint64) (bool, error)
	RecordDownload(ctx context.Context, post model.Post, path string) error
}

// errHashMismatch は、保存したファイルのMD5が投稿の値と一致しなかったことを示します。
var errHashMismatch = errors.New("MD5が一致しません")

// Queue は、投稿のファイルを Dir 以下に保存するダウンロードキューです。
type Queue struct {
	Client   *network.Client
	Settings config.DownloadSettings
	Dir      string           // 保存先ディレクトリ
	Recorder Recorder         // nil なら記録しない
	Progress ProgressListener // nil なら通知しない
	Logger   *log.Logger      // nil なら log.Default()

	// SkipHashCheck が true の場合、保存後のMD5照合を行いません（変換済み動画など）。
	SkipHashCheck bool
}

func (q *Queue) logger() *log.Logger {
	if q.Logger == nil {
		return log.Default()
	}
	return q.Logger
}

func (q *Queue) concurrency() int {
	if q.Settings.Concurrency <= 0 {
		return 4
	}
	return q.Settings.Concurrency
}

// RunBatch は、posts を全て処理するまでブロックします。
func (q *Queue) RunBatch(ctx context.Context, posts []model.Post) error {
	if q.Progress != nil {
		q.Progress.AddTotal(len(posts))
	}
	ch := make(chan model.Post, len(posts))
	for _, p := range posts {
		ch <- p
	}
	close(ch)
	return q.Run(ctx, ch)
}

// Run は、posts が閉じられるまで受信した投稿を並行してダウンロードします。
// 個々の投稿の失敗は Progress に通知して処理を続け、ctx がキャンセルされた場合のみエラーを返します。
// ワーカーが全て埋まっている間は受信しないため、送信側には背圧がかかります。
func (q *Queue) Run(ctx context.Context, posts <-chan model.Post) error {
	if err := os.MkdirAll(q.Dir, 0755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました (path=%s): %w", q.Dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency())

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case post, ok := <-posts:
			if !ok {
				break loop
			}
			g.Go(func() error {
				return q.process(gctx, post)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// process は、1件の投稿を保存します。キャンセル以外のエラーは Progress に通知して nil を返します。
func (q *Queue) process(ctx context.Context, post model.Post) error {
	if q.Recorder != nil {
		done, err := q.Recorder.HasDownloaded(ctx, post.Website, post.ID)
		if err != nil {
			q.logger().Printf("WARNING: ダウンロード履歴を参照できませんでした (id=%d): %v", post.ID, err)
		}
		if done {
			q.notifySkipped(post)
			return nil
		}
	}

	name, err := GenerateFileName(q.Settings.FilenameFormat, post)
	if err != nil {
		q.notifyFailed(post, err)
		return nil
	}
	dest := filepath.Join(q.Dir, name)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		q.record(ctx, post, post.MD5, dest)
		q.notifySkipped(post)
		return nil
	}

	n, sum, err := q.downloadFile(ctx, post, dest)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.notifyFailed(post, err)
		return nil
	}

	if q.Settings.Annotate {
		if err := os.WriteFile(CaptionPath(dest), []byte(Caption(post)), 0644); err != nil {
			q.logger().Printf("WARNING: キャプションの書き込みに失敗しました (path=%s): %v", CaptionPath(dest), err)
		}
	}

	q.record(ctx, post, sum, dest)
	if q.Progress != nil {
		q.Progress.PostDownloaded(post, n)
	}
	return nil
}

// record は、実際に保存したファイルのハッシュで記録します。
func (q *Queue) record(ctx context.Context, post model.Post, sum, dest string) {
	if q.Recorder == nil {
		return
	}
	rec := post
	rec.MD5 = sum
	if err := q.Recorder.RecordDownload(ctx, rec, dest); err != nil {
		q.logger().Printf("WARNING: ダウンロード履歴を記録できませんでした (id=%d): %v", post.ID, err)
	}
}

func (q *Queue) notifySkipped(post model.Post) {
	if q.Progress != nil {
		q.Progress.PostSkipped(post)
	}
}

func (q *Queue) notifyFailed(post model.Post, err error) {
	if q.Progress != nil {
		q.Progress.PostFailed(post, err)
	}
}

// downloadFile は、リトライ付きでファイルを一時ファイルに保存し、完了後に dest へリネームします。
// 書き込んだバイト数とMD5の16進文字列を返します。
func (q *Queue) downloadFile(ctx context.Context, post model.Post, dest string) (int64, string, error) {
	retryCount := max(q.Settings.RetryCount, 0)
	wait := time.Duration(q.Settings.RetryWaitMillis) * time.Millisecond

	var lastErr error
	for i := 0; i <= retryCount; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return 0, "", ctx.Err()
			case <-time.After(wait):
			}
		}

		n, sum, err := q.tryDownload(ctx, post, dest)
		if err == nil {
			return n, sum, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, "", ctx.Err()
		}
		var httpErr *network.HTTPError
		if errors.As(err, &httpErr) && !httpErr.IsRetryable() {
			return 0, "", fmt.Errorf("リトライ不可能なHTTPエラー (status=%d, id=%d): %w", httpErr.StatusCode, post.ID, err)
		}
		q.logger().Printf("WARNING: ダウンロード失敗（試行 %d/%d）: id=%d, url=%s, error=%v", i+1, retryCount+1, post.ID, post.URL, err)
	}
	return 0, "", fmt.Errorf("ダウンロードがリトライ上限に達しました (id=%d, retry_count=%d): %w", post.ID, retryCount, lastErr)
}

func (q *Queue) tryDownload(ctx context.Context, post model.Post, dest string) (int64, string, error) {
	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, "", fmt.Errorf("一時ファイルの作成に失敗しました (path=%s): %w", part, err)
	}

	h := md5.New()
	n, err := q.Client.Download(ctx, post.URL, io.MultiWriter(f, h))
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("一時ファイルのクローズに失敗しました (path=%s): %w", part, cerr)
	}
	if err != nil {
		os.Remove(part)
		return 0, "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if !q.SkipHashCheck && post.MD5 != "" && sum != post.MD5 {
		os.Remove(part)
		return 0, "", fmt.Errorf("%w (id=%d, expected=%s, actual=%s)", errHashMismatch, post.ID, post.MD5, sum)
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return 0, "", fmt.Errorf("ファイルのリネームに失敗しました (path=%s): %w", dest, err)
	}
	return n, sum, nil
}
