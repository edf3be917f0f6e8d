// Package adapter は、サイト固有の処理を抽象化するインターフェースと、
// その具体的な実装を提供します。これにより、GBDは様々なイメージボードに
// プラグイン形式で対応できます。
package adapter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"
)

// SiteAPI は、サイト固有の処理を抽象化するインターフェースです。
// URLの組み立て、応答のデコードと共通モデルへの変換、ページングの性質だけを担い、
// 取得ループ自体は core.PostExtractor が共通のアルゴリズムで駆動します。
type SiteAPI interface {
	// Name は、ログやエラーメッセージに使うアダプタ名を返します。
	Name() string

	// PostsURL は、ページ付き一覧のURLを構築します。page は1始まりです。
	PostsURL(server config.ServerConfig, page, limit int, tagQuery string) (string, error)
	// SinglePostURL は、ID指定で単一投稿を取得するURLを構築します。
	SinglePostURL(server config.ServerConfig, id uint64) (string, error)
	// PoolDetailsURL は、プール詳細のURLを構築します。非対応なら model.ErrUnsupportedOperation を返します。
	PoolDetailsURL(server config.ServerConfig, poolID uint64) (string, error)
	// ProfileURL は、認証確認とユーザーのブラックリスト取得に使うURLを構築します。
	ProfileURL(server config.ServerConfig, username string) (string, error)

	// ParsePostList は、一覧の応答をデコードし、ファイルURLなどを欠くレコードを黙って除外して返します。
	ParsePostList(body []byte) ([]model.Post, error)
	// ParseSinglePost は、単一投稿の応答をデコードします。必須フィールドが欠けていればエラーです。
	ParseSinglePost(body []byte) (model.Post, error)
	// ParsePoolDetails は、投稿IDからプール内の0始まりの位置へのマップを返します。
	ParsePoolDetails(body []byte) (map[uint64]int, error)
	// ParseProfile は、認証済みユーザーのブラックリストタグを返します。
	ParseProfile(body []byte) ([]string, error)

	// ProcessTags は、APIクエリ文字列と、正値フィルタ用の全タグを返します。
	// クエリに載せられるタグ数に上限があるサイトでは、クエリ側だけを先頭N件に切り詰めます。
	ProcessTags(tags []string) (string, []string)

	// FullSearchPageLimit は、1回の検索で巡回するページ数の上限です。
	FullSearchPageLimit() int
	// PostLimitBreak は、今回のページが最終ページらしいかどうかを判定します。
	PostLimitBreak(countThisPage, pageSize int) bool
	// FullSearchDelay は、ページ取得の間に挟む待機時間です。0なら待機しません。
	FullSearchDelay() time.Duration
	// MultiGetDelay は、ID指定の連続取得の間に挟む待機時間です。
	MultiGetDelay() time.Duration
}

// defaultBreak は、要求した件数より少ない結果が返ったページを最終ページとみなします。
// ちょうどpageSize件で終わる場合は空ページを1回余分に取得します。
func defaultBreak(countThisPage, pageSize int) bool {
	return countThisPage < pageSize
}

// processTagsCapped は、タグを正規化・重複排除し、クエリには先頭 maxTags 件のみを使います。
// maxTags が0以下なら上限なしです。
func processTagsCapped(tags []string, maxTags int) (string, []string) {
	seen := make(map[string]bool, len(tags))
	all := make([]string, 0, len(tags))
	for _, raw := range tags {
		for _, field := range strings.Fields(raw) {
			tag := model.NormalizeTag(field)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			all = append(all, tag)
		}
	}

	queryTags := all
	if maxTags > 0 && len(queryTags) > maxTags {
		queryTags = queryTags[:maxTags]
	}
	return strings.Join(queryTags, " "), all
}

// withQuery は、既存のクエリ文字列を保ったまま、パラメータを追加したURLを返します。
func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗しました (%s): %w", rawURL, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// joinID は、末尾が '/' のプレフィックスURLに "<id>.json" を連結します。
func joinID(prefix string, id uint64) (string, error) {
	u, err := url.Parse(prefix)
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗しました (%s): %w", prefix, err)
	}
	return u.JoinPath(strconv.FormatUint(id, 10) + ".json").String(), nil
}

// capLimit は、1ページあたりの件数をサーバーの上限に収めます。
func capLimit(limit int, server config.ServerConfig) int {
	if limit <= 0 || limit > server.MaxPostLimit {
		return server.MaxPostLimit
	}
	return limit
}

// decodeJSON は、応答本文をデコードし、失敗した場合は本文の要約付きの DeserializeError を返します。
func decodeJSON(site string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &model.DeserializeError{Site: site, Detail: network.SummarizeBody(body), Err: err}
	}
	return nil
}

// parseBlacklistLines は、改行区切りのブラックリスト文字列から単一タグの行だけを取り出します。
// "a b" のような複合条件の行は単一タグのフィルタでは表現できないため対象外です。
func parseBlacklistLines(s string) []string {
	var tags []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 1 {
			continue
		}
		if tag := model.NormalizeTag(fields[0]); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
