// Package config は、アプリケーションの設定ファイル(gbd.toml)の構造定義と、
// その読み込み、解決（組み込みサーバー定義とのマージなど）に関する機能を提供します。
package config

import "strings"

// Config は gbd.toml ファイル全体を表すルート構造体です。
type Config struct {
	EnableLogFile bool                    `mapstructure:"enable_log_file"`
	LogFilePath   string                  `mapstructure:"log_file_path"`
	Schedule      string                  `mapstructure:"schedule"`
	Network       NetworkSettings         `mapstructure:"network"`
	Download      DownloadSettings        `mapstructure:"download"`
	Blacklist     Blacklist               `mapstructure:"blacklist"`
	Servers       map[string]ServerConfig `mapstructure:"-"`
}

// NetworkSettings は、HTTPリクエストに関するグローバルな設定を保持します。
type NetworkSettings struct {
	UserAgent               string            `mapstructure:"user_agent"`
	DefaultHeaders          map[string]string `mapstructure:"default_headers"`
	PerDomainIntervalMillis map[string]int    `mapstructure:"per_domain_interval_ms"`
	RequestTimeoutMillis    int               `mapstructure:"request_timeout_ms"`
}

// DownloadSettings は、ダウンロードキューの動作を定義します。
type DownloadSettings struct {
	OutputDir       string `mapstructure:"output_dir"`
	Concurrency     int    `mapstructure:"concurrency"`
	RetryCount      int    `mapstructure:"retry_count"`
	RetryWaitMillis int    `mapstructure:"retry_wait_ms"`
	FilenameFormat  string `mapstructure:"filename_format"`
	Annotate        bool   `mapstructure:"annotate"`
	SummaryDB       string `mapstructure:"summary_db"`
}

// Blacklist は、全サーバー共通およびサーバー別のブラックリストタグです。
type Blacklist struct {
	Global []string            `mapstructure:"global"`
	Sites  map[string][]string `mapstructure:"sites"`
}

// TagsFor は、指定サーバーに適用されるタグ（共通 + サーバー別）を返します。
func (b Blacklist) TagsFor(server string) []string {
	tags := make([]string, 0, len(b.Global)+len(b.Sites[server]))
	tags = append(tags, b.Global...)
	tags = append(tags, b.Sites[strings.ToLower(server)]...)
	return tags
}

// ServerKind は、APIの形状を決めるサイト種別です。
type ServerKind string

const (
	KindDanbooru ServerKind = "danbooru"
	KindE621     ServerKind = "e621"
	KindGelbooru ServerKind = "gelbooru"
	KindMoebooru ServerKind = "moebooru"
)

// ServerConfig は、1つのイメージボードの静的な定義です。実行中に変更されることはありません。
type ServerConfig struct {
	Name            string
	PrettyName      string
	Server          ServerKind
	ClientUserAgent string
	BaseURL         string
	PostURL         string // 単一投稿の取得先 (空ならBaseURLから組み立て)
	PostListURL     string
	PoolIdxURL      string // 空ならプール非対応
	MaxPostLimit    int
	AuthURL         string // 空なら認証非対応
}

// HasPool は、プールのエンドポイントが設定されているかを返します。
func (s ServerConfig) HasPool() bool { return s.PoolIdxURL != "" }

// HasAuth は、認証エンドポイントが設定されているかを返します。
func (s ServerConfig) HasAuth() bool { return s.AuthURL != "" }
