package config

import (
	"fmt"
	"sort"
)

const defaultUserAgent = "GoBooruDownloader/1.0 (by gbd)"

// DefaultServers は、組み込みのサーバー定義を新しいマップとして返します。
func DefaultServers() map[string]ServerConfig {
	return map[string]ServerConfig{
		"danbooru": {
			Name:         "danbooru",
			PrettyName:   "Danbooru",
			Server:       KindDanbooru,
			BaseURL:      "https://danbooru.donmai.us",
			PostURL:      "https://danbooru.donmai.us/posts/",
			PostListURL:  "https://danbooru.donmai.us/posts.json",
			PoolIdxURL:   "https://danbooru.donmai.us/pools/",
			MaxPostLimit: 200,
			AuthURL:      "https://danbooru.donmai.us/profile.json",
		},
		"e621": {
			Name:         "e621",
			PrettyName:   "e621",
			Server:       KindE621,
			BaseURL:      "https://e621.net",
			PostURL:      "https://e621.net/posts/",
			PostListURL:  "https://e621.net/posts.json",
			PoolIdxURL:   "https://e621.net/pools/",
			MaxPostLimit: 320,
			AuthURL:      "https://e621.net/users/",
		},
		"e926": {
			Name:         "e926",
			PrettyName:   "e926",
			Server:       KindE621,
			BaseURL:      "https://e926.net",
			PostURL:      "https://e926.net/posts/",
			PostListURL:  "https://e926.net/posts.json",
			PoolIdxURL:   "https://e926.net/pools/",
			MaxPostLimit: 320,
			AuthURL:      "https://e926.net/users/",
		},
		"gelbooru": {
			Name:         "gelbooru",
			PrettyName:   "Gelbooru",
			Server:       KindGelbooru,
			BaseURL:      "https://gelbooru.com",
			PostListURL:  "https://gelbooru.com/index.php?page=dapi&s=post&q=index&json=1",
			MaxPostLimit: 100,
		},
		"rule34": {
			Name:         "rule34",
			PrettyName:   "Rule34",
			Server:       KindGelbooru,
			BaseURL:      "https://api.rule34.xxx",
			PostListURL:  "https://api.rule34.xxx/index.php?page=dapi&s=post&q=index&json=1",
			MaxPostLimit: 1000,
		},
		"realbooru": {
			Name:         "realbooru",
			PrettyName:   "Realbooru",
			Server:       KindGelbooru,
			BaseURL:      "https://realbooru.com",
			PostListURL:  "https://realbooru.com/index.php?page=dapi&s=post&q=index&json=1",
			MaxPostLimit: 1000,
		},
		"konachan": {
			Name:         "konachan",
			PrettyName:   "Konachan",
			Server:       KindMoebooru,
			BaseURL:      "https://konachan.com",
			PostListURL:  "https://konachan.com/post.json",
			PoolIdxURL:   "https://konachan.com/pool/show.json",
			MaxPostLimit: 100,
		},
		"yandere": {
			Name:         "yandere",
			PrettyName:   "yande.re",
			Server:       KindMoebooru,
			BaseURL:      "https://yande.re",
			PostListURL:  "https://yande.re/post.json",
			PoolIdxURL:   "https://yande.re/pool/show.json",
			MaxPostLimit: 100,
		},
	}
}

// serverPatch は、ユーザー設定のサーバー定義をデコードするための中間ヘルパー構造体です。
// nilでないフィールドのみが組み込み定義を上書きします。
type serverPatch struct {
	PrettyName      *string `mapstructure:"pretty_name"`
	Server          *string `mapstructure:"server"`
	ClientUserAgent *string `mapstructure:"client_user_agent"`
	BaseURL         *string `mapstructure:"base_url"`
	PostURL         *string `mapstructure:"post_url"`
	PostListURL     *string `mapstructure:"post_list_url"`
	PoolIdxURL      *string `mapstructure:"pool_idx_url"`
	MaxPostLimit    *int    `mapstructure:"max_post_limit"`
	AuthURL         *string `mapstructure:"auth_url"`
}

// applyServerPatch は、patchの非nilフィールドをtargetに上書きします。
func applyServerPatch(target *ServerConfig, patch *serverPatch) {
	if patch.PrettyName != nil {
		target.PrettyName = *patch.PrettyName
	}
	if patch.Server != nil {
		target.Server = ServerKind(*patch.Server)
	}
	if patch.ClientUserAgent != nil {
		target.ClientUserAgent = *patch.ClientUserAgent
	}
	if patch.BaseURL != nil {
		target.BaseURL = *patch.BaseURL
	}
	if patch.PostURL != nil {
		target.PostURL = *patch.PostURL
	}
	if patch.PostListURL != nil {
		target.PostListURL = *patch.PostListURL
	}
	if patch.PoolIdxURL != nil {
		target.PoolIdxURL = *patch.PoolIdxURL
	}
	if patch.MaxPostLimit != nil {
		target.MaxPostLimit = *patch.MaxPostLimit
	}
	if patch.AuthURL != nil {
		target.AuthURL = *patch.AuthURL
	}
}

// resolveServers は、組み込み定義にユーザー定義をマージし、検証します。
func resolveServers(patches map[string]serverPatch) (map[string]ServerConfig, error) {
	servers := DefaultServers()

	names := make([]string, 0, len(patches))
	for name := range patches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		patch := patches[name]
		target, ok := servers[name]
		if !ok {
			target = ServerConfig{Name: name, PrettyName: name}
		}
		applyServerPatch(&target, &patch)
		servers[name] = target
	}

	for name, s := range servers {
		if s.ClientUserAgent == "" {
			s.ClientUserAgent = defaultUserAgent
			servers[name] = s
		}
		if err := validateServer(s); err != nil {
			return nil, err
		}
	}
	return servers, nil
}

func validateServer(s ServerConfig) error {
	switch s.Server {
	case KindDanbooru, KindE621, KindGelbooru, KindMoebooru:
	default:
		return fmt.Errorf("サーバー '%s' の種別 '%s' は不明です", s.Name, s.Server)
	}
	if s.BaseURL == "" {
		return fmt.Errorf("サーバー '%s' の base_url が設定されていません", s.Name)
	}
	if s.PostListURL == "" {
		return fmt.Errorf("サーバー '%s' の post_list_url が設定されていません", s.Name)
	}
	if s.MaxPostLimit <= 0 {
		return fmt.Errorf("サーバー '%s' の max_post_limit は1以上である必要があります (値: %d)", s.Name, s.MaxPostLimit)
	}
	return nil
}
