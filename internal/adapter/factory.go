package adapter

import (
	"fmt"

	"GoBooruDownloader/internal/config"
)

// Options は、アダプタ生成時のオプションです。
type Options struct {
	// MapVideos は、Danbooruのうごイラ(zip)を変換済みwebmに差し替えます。
	MapVideos bool
}

// adapterRegistry は、サーバー種別とSiteAPI実装のマッピングを保持します。
var adapterRegistry = map[config.ServerKind]func(name string, opts Options) SiteAPI{
	config.KindDanbooru: NewDanbooruAPI,
	config.KindE621:     NewE621API,
	config.KindGelbooru: NewGelbooruAPI,
	config.KindMoebooru: NewMoebooruAPI,
}

// GetAdapter は、サーバー定義に対応するSiteAPIの新しいインスタンスを返します。
func GetAdapter(server config.ServerConfig, opts Options) (SiteAPI, error) {
	factory, ok := adapterRegistry[server.Server]
	if !ok {
		return nil, fmt.Errorf("サーバー種別 '%s' に対応するアダプタが見つかりません (server=%s)", server.Server, server.Name)
	}
	return factory(server.Name, opts), nil
}
