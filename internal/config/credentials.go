package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials は、認証済みユーザーの資格情報です。
// BlacklistedTags は、サーバーのプロフィールとは別に解決済みのユーザーブラックリストです。
type Credentials struct {
	Username        string
	APIKey          string
	BlacklistedTags []string
}

// LoadCredentials は、.envファイル（存在すれば）と環境変数から指定サーバーの資格情報を読み込みます。
// GBD_<SERVER>_USERNAME と GBD_<SERVER>_API_KEY の両方が揃っていない場合は nil を返します。
func LoadCredentials(server string, envFile string) (*Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf(".envファイル '%s' の読み込みに失敗しました: %w", envFile, err)
		}
	}

	prefix := "GBD_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(server)) + "_"
	username := strings.TrimSpace(os.Getenv(prefix + "USERNAME"))
	apiKey := strings.TrimSpace(os.Getenv(prefix + "API_KEY"))
	if username == "" || apiKey == "" {
		return nil, nil
	}
	return &Credentials{Username: username, APIKey: apiKey}, nil
}
