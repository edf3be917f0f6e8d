package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// keyDelimiter は、ホスト名 (例: danbooru.donmai.us) をキーとして扱うため '.' 以外を区切りに使います。
const keyDelimiter = "::"

// newViper は、デフォルト値と環境変数の対応を設定したviperインスタンスを返します。
// 環境変数は GBD_DOWNLOAD_CONCURRENCY のように GBD_ 接頭辞で上書きできます。
func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("toml")

	v.SetDefault("enable_log_file", false)
	v.SetDefault("log_file_path", "")
	v.SetDefault("schedule", "")
	v.SetDefault("network::user_agent", defaultUserAgent)
	v.SetDefault("network::request_timeout_ms", 30000)
	v.SetDefault("download::output_dir", ".")
	v.SetDefault("download::concurrency", 4)
	v.SetDefault("download::retry_count", 3)
	v.SetDefault("download::retry_wait_ms", 2000)
	v.SetDefault("download::filename_format", "{md5}.{ext}")
	v.SetDefault("download::annotate", false)
	v.SetDefault("download::summary_db", "gbd_summary.db")

	v.SetEnvPrefix("GBD")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

// LoadAndResolve は、指定されたパスから設定ファイルを読み込み、解析と解決を行います。
// ファイルが存在しない場合は組み込みのデフォルトのみで設定を構築します。
func LoadAndResolve(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました: %w", path, err)
			}
			log.Printf("INFO: 設定ファイル '%s' が見つからないため、デフォルト設定を使用します", path)
		}
	}
	return resolve(v)
}

// ParseAndResolve は、TOMLデータのバイトスライスを解析し、サーバー定義を解決して最終的な設定を返します。
// この関数はテストのために分離されています。
func ParseAndResolve(data []byte) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("設定ファイルのTOML解析に失敗しました: %w", err)
	}
	return resolve(v)
}

func resolve(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのデコードに失敗しました: %w", err)
	}

	var patches map[string]serverPatch
	if err := v.UnmarshalKey("servers", &patches); err != nil {
		return nil, fmt.Errorf("サーバー定義のデコードに失敗しました: %w", err)
	}
	servers, err := resolveServers(patches)
	if err != nil {
		return nil, err
	}
	cfg.Servers = servers

	if cfg.Download.Concurrency <= 0 {
		cfg.Download.Concurrency = 1
	}
	if cfg.Download.FilenameFormat == "" {
		cfg.Download.FilenameFormat = "{md5}.{ext}"
	}
	return &cfg, nil
}

// Server は、名前に対応するサーバー定義を返します。
func (c *Config) Server(name string) (ServerConfig, error) {
	s, ok := c.Servers[strings.ToLower(name)]
	if !ok {
		return ServerConfig{}, fmt.Errorf("サーバー名 '%s' に対応する定義が見つかりません", name)
	}
	return s, nil
}
