package download

import (
	"fmt"
	"log"
	"sync"
	"time"

	"GoBooruDownloader/internal/model"
)

// ProgressListener は、ダウンロードの進捗を受け取るシンクです。
// 実装は複数のゴルーチンから同時に呼び出されても安全である必要があります。
type ProgressListener interface {
	AddTotal(n int)
	PostDownloaded(post model.Post, bytes int64)
	PostSkipped(post model.Post)
	PostFailed(post model.Post, err error)
}

// SessionStats は、1回の実行の統計情報です。
type SessionStats struct {
	StartTime         time.Time // 開始時刻
	Total             int       // 対象の投稿数
	FilesDownloaded   int       // ダウンロードしたファイル数
	FilesSkipped      int       // 既存のためスキップしたファイル数
	FilesFailed       int       // 失敗したファイル数
	TotalBytesWritten int64     // 合計ダウンロードサイズ（バイト）
}

// Done は、処理済みの投稿数を返します。
func (s SessionStats) Done() int {
	return s.FilesDownloaded + s.FilesSkipped + s.FilesFailed
}

// FormatSessionInfo は統計情報を1行の文字列にフォーマットします。
func (s SessionStats) FormatSessionInfo() string {
	elapsed := time.Since(s.StartTime).Round(time.Second)
	sizeMB := float64(s.TotalBytesWritten) / (1024 * 1024)

	return fmt.Sprintf("経過: %v | 完了: %d/%d | 取得: %d | スキップ: %d | 失敗: %d | %.1fMB",
		elapsed, s.Done(), s.Total, s.FilesDownloaded, s.FilesSkipped, s.FilesFailed, sizeMB)
}

// LogProgress は、進捗をロガーに出力しながら統計を集計する ProgressListener です。
type LogProgress struct {
	logger *log.Logger
	mu     sync.Mutex
	stats  SessionStats
}

// NewLogProgress は、新しい LogProgress を返します。logger が nil なら log.Default() を使用します。
func NewLogProgress(logger *log.Logger) *LogProgress {
	if logger == nil {
		logger = log.Default()
	}
	return &LogProgress{logger: logger, stats: SessionStats{StartTime: time.Now()}}
}

func (l *LogProgress) AddTotal(n int) {
	l.mu.Lock()
	l.stats.Total += n
	l.mu.Unlock()
}

func (l *LogProgress) PostDownloaded(post model.Post, bytes int64) {
	l.mu.Lock()
	l.stats.FilesDownloaded++
	l.stats.TotalBytesWritten += bytes
	done, total := l.stats.Done(), l.stats.Total
	l.mu.Unlock()
	l.logger.Printf("INFO: [%d/%d] %d をダウンロードしました (%d bytes)", done, total, post.ID, bytes)
}

func (l *LogProgress) PostSkipped(post model.Post) {
	l.mu.Lock()
	l.stats.FilesSkipped++
	l.mu.Unlock()
}

func (l *LogProgress) PostFailed(post model.Post, err error) {
	l.mu.Lock()
	l.stats.FilesFailed++
	l.mu.Unlock()
	l.logger.Printf("ERROR: %d のダウンロードに失敗しました: %v", post.ID, err)
}

// Stats は、現時点の統計のコピーを返します。
func (l *LogProgress) Stats() SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
