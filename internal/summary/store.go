// Package summary は、ダウンロード済み投稿と検索の実行履歴をSQLiteに記録し、
// 中断からの再開と差分更新（update モード）を可能にします。
package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"GoBooruDownloader/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLiteドライバ
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
    server        TEXT    NOT NULL,
    post_id       INTEGER NOT NULL,
    md5           TEXT    NOT NULL,
    path          TEXT    NOT NULL,
    downloaded_at INTEGER NOT NULL,
    PRIMARY KEY (server, post_id)
);
CREATE TABLE IF NOT EXISTS runs (
    server       TEXT    NOT NULL,
    query        TEXT    NOT NULL,
    last_post_id INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL,
    PRIMARY KEY (server, query)
);`

// Record は、ダウンロード済みファイル1件の記録です。
type Record struct {
	Server       string
	PostID       uint64
	MD5          string
	Path         string
	DownloadedAt time.Time
}

// Store は、サマリーデータベースへのハンドルです。複数のゴルーチンから同時に使用できます。
type Store struct {
	db *sql.DB
}

// Open は、path のデータベースを開き（なければ作成し）、テーブルを用意します。
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("データベースのディレクトリ作成に失敗しました (path=%s): %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベースを開けませんでした (path=%s): %w", path, err)
	}
	// SQLiteの書き込みは直列化されるため、接続は1本に絞る
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースに接続できませんでした (path=%s): %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("テーブルの作成に失敗しました (path=%s): %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close は、データベースを閉じます。
func (s *Store) Close() error {
	return s.db.Close()
}

// HasDownloaded は、投稿がダウンロード済みとして記録されているかを返します。
func (s *Store) HasDownloaded(ctx context.Context, server string, postID uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM downloads WHERE server = ? AND post_id = ?`, server, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ダウンロード履歴の参照に失敗しました (server=%s, id=%d): %w", server, postID, err)
	}
	return true, nil
}

// RecordDownload は、投稿のダウンロード完了を記録します。既存の記録は上書きします。
func (s *Store) RecordDownload(ctx context.Context, post model.Post, path string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO downloads (server, post_id, md5, path, downloaded_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (server, post_id) DO UPDATE SET md5 = excluded.md5, path = excluded.path, downloaded_at = excluded.downloaded_at`,
		post.Website, post.ID, post.MD5, path, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("ダウンロード履歴の記録に失敗しました (server=%s, id=%d): %w", post.Website, post.ID, err)
	}
	return nil
}

// Forget は、投稿のダウンロード記録を削除します。次回の実行で再取得されます。
func (s *Store) Forget(ctx context.Context, server string, postID uint64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM downloads WHERE server = ? AND post_id = ?`, server, postID); err != nil {
		return fmt.Errorf("ダウンロード履歴の削除に失敗しました (server=%s, id=%d): %w", server, postID, err)
	}
	return nil
}

// Downloads は、server のダウンロード記録をID降順で返します。server が空なら全サーバーが対象です。
func (s *Store) Downloads(ctx context.Context, server string) ([]Record, error) {
	query := `SELECT server, post_id, md5, path, downloaded_at FROM downloads`
	var args []any
	if server != "" {
		query += ` WHERE server = ?`
		args = append(args, server)
	}
	query += ` ORDER BY server, post_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ダウンロード履歴の取得に失敗しました (server=%s): %w", server, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.Server, &r.PostID, &r.MD5, &r.Path, &ts); err != nil {
			return nil, fmt.Errorf("ダウンロード履歴の読み込みに失敗しました: %w", err)
		}
		r.DownloadedAt = time.Unix(ts, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// QueryKey は、検索タグから実行履歴のキーを作ります。タグの順序には依存しません。
func QueryKey(tags []string) string {
	sorted := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := model.NormalizeTag(t); n != "" {
			sorted = append(sorted, n)
		}
	}
	slices.Sort(sorted)
	return strings.Join(sorted, " ")
}

// LastPostID は、同じサーバー・検索で前回取得した最新の投稿IDを返します。
// 記録がない場合は ok が false です。
func (s *Store) LastPostID(ctx context.Context, server, query string) (id uint64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT last_post_id FROM runs WHERE server = ? AND query = ?`, server, query).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("実行履歴の参照に失敗しました (server=%s, query=%q): %w", server, query, err)
	}
	return id, true, nil
}

// RecordRun は、検索の実行完了と取得した最新の投稿IDを記録します。
// 既存の記録より小さいIDで上書きすることはありません。
func (s *Store) RecordRun(ctx context.Context, server, query string, lastPostID uint64) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO runs (server, query, last_post_id, finished_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (server, query) DO UPDATE SET
            last_post_id = MAX(runs.last_post_id, excluded.last_post_id),
            finished_at = excluded.finished_at`,
		server, query, lastPostID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("実行履歴の記録に失敗しました (server=%s, query=%q): %w", server, query, err)
	}
	return nil
}

// FilterNewer は、update モード用に lastID より新しい投稿のみを残します。
func FilterNewer(posts []model.Post, lastID uint64) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID > lastID {
			out = append(out, p)
		}
	}
	return out
}
