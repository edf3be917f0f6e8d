package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
)

// 匿名ユーザーがDanbooruの1クエリで使えるタグは2つまでです。
const danbooruTagLimit = 2

// DanbooruPost は、Danbooruの /posts.json が返す投稿の形です。
type DanbooruPost struct {
	ID                 uint64 `json:"id"`
	MD5                string `json:"md5"`
	FileURL            string `json:"file_url"`
	LargeFileURL       string `json:"large_file_url"`
	FileExt            string `json:"file_ext"`
	Rating             string `json:"rating"`
	Score              int    `json:"score"`
	TagStringGeneral   string `json:"tag_string_general"`
	TagStringCharacter string `json:"tag_string_character"`
	TagStringCopyright string `json:"tag_string_copyright"`
	TagStringArtist    string `json:"tag_string_artist"`
	TagStringMeta      string `json:"tag_string_meta"`
}

// DanbooruPool は、/pools/<id>.json の応答です。post_ids はプール内の順序どおりに並びます。
type DanbooruPool struct {
	ID      uint64   `json:"id"`
	Name    string   `json:"name"`
	PostIDs []uint64 `json:"post_ids"`
}

// DanbooruProfile は、/profile.json の応答のうち使用する部分です。
type DanbooruProfile struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	BlacklistedTags string `json:"blacklisted_tags"`
}

// DanbooruAPI は、Danbooru固有のURL構築と応答変換を実装します。
type DanbooruAPI struct {
	name      string
	mapVideos bool
}

// NewDanbooruAPI は、DanbooruAPIの新しいインスタンスを返します。
func NewDanbooruAPI(name string, opts Options) SiteAPI {
	return &DanbooruAPI{name: name, mapVideos: opts.MapVideos}
}

func (a *DanbooruAPI) Name() string { return a.name }

// PostsURL は、Danbooruの一覧URLを構築します。page は1始まりのページ番号です。
func (a *DanbooruAPI) PostsURL(server config.ServerConfig, page, limit int, tagQuery string) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(capLimit(limit, server)),
		"tags":  tagQuery,
	})
}

func (a *DanbooruAPI) SinglePostURL(server config.ServerConfig, id uint64) (string, error) {
	prefix := server.PostURL
	if prefix == "" {
		prefix = strings.TrimSuffix(server.BaseURL, "/") + "/posts/"
	}
	return joinID(prefix, id)
}

func (a *DanbooruAPI) PoolDetailsURL(server config.ServerConfig, poolID uint64) (string, error) {
	if !server.HasPool() {
		return "", fmt.Errorf("%w: %s はプールに対応していません", model.ErrUnsupportedOperation, server.Name)
	}
	return joinID(server.PoolIdxURL, poolID)
}

// ProfileURL は、ログイン中ユーザーのプロフィールURLを返します。Danbooruではユーザー名は不要です。
func (a *DanbooruAPI) ProfileURL(server config.ServerConfig, _ string) (string, error) {
	if !server.HasAuth() {
		return "", fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, server.Name)
	}
	return server.AuthURL, nil
}

// DecodePostList は、一覧の応答本文をデコードします。
func (a *DanbooruAPI) DecodePostList(body []byte) ([]DanbooruPost, error) {
	var posts []DanbooruPost
	if err := decodeJSON(a.name, body, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// MapPostList は、ダウンロード可能なレコードのみを共通モデルに変換します。
// 削除済み・保留中などでファイルURLを持たない投稿はここで除外されます。
func (a *DanbooruAPI) MapPostList(raw []DanbooruPost) []model.Post {
	posts := make([]model.Post, 0, len(raw))
	for _, r := range raw {
		p := a.mapPost(r)
		if p.ID == 0 || p.CheckRequired() != nil {
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

// MapSinglePost は、単一投稿を共通モデルに変換します。必須フィールドが欠けていればエラーです。
func (a *DanbooruAPI) MapSinglePost(raw DanbooruPost) (model.Post, error) {
	if raw.ID == 0 {
		return model.Post{}, &model.MissingFieldError{Site: a.name, Field: "id"}
	}
	p := a.mapPost(raw)
	if err := p.CheckRequired(); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

func (a *DanbooruAPI) mapPost(r DanbooruPost) model.Post {
	fileURL := r.FileURL
	ext := model.ParseExtension(r.FileExt)
	if ext == model.ExtUnknown {
		ext = model.ExtensionFromURL(fileURL)
	}
	if a.mapVideos && ext == model.ExtUgoira && model.ExtensionFromURL(r.LargeFileURL) == model.ExtWEBM {
		fileURL = r.LargeFileURL
		ext = model.ExtWEBM
	}

	tags := make([]model.Tag, 0, 32)
	tags = append(tags, model.SplitTagString(r.TagStringArtist, model.TagAuthor)...)
	tags = append(tags, model.SplitTagString(r.TagStringCopyright, model.TagCopyright)...)
	tags = append(tags, model.SplitTagString(r.TagStringCharacter, model.TagCharacter)...)
	tags = append(tags, model.SplitTagString(r.TagStringGeneral, model.TagGeneral)...)
	tags = append(tags, model.SplitTagString(r.TagStringMeta, model.TagMeta)...)

	return model.Post{
		ID:        r.ID,
		Website:   a.name,
		URL:       fileURL,
		MD5:       r.MD5,
		Extension: ext,
		Rating:    model.ParseRating(r.Rating),
		Tags:      tags,
		Score:     r.Score,
	}
}

func (a *DanbooruAPI) ParsePostList(body []byte) ([]model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return nil, err
	}
	return a.MapPostList(raw), nil
}

func (a *DanbooruAPI) ParseSinglePost(body []byte) (model.Post, error) {
	var raw DanbooruPost
	if err := decodeJSON(a.name, body, &raw); err != nil {
		return model.Post{}, err
	}
	return a.MapSinglePost(raw)
}

func (a *DanbooruAPI) ParsePoolDetails(body []byte) (map[uint64]int, error) {
	var pool DanbooruPool
	if err := decodeJSON(a.name, body, &pool); err != nil {
		return nil, err
	}
	return orderFromIDs(pool.PostIDs), nil
}

func (a *DanbooruAPI) ParseProfile(body []byte) ([]string, error) {
	var profile DanbooruProfile
	if err := decodeJSON(a.name, body, &profile); err != nil {
		return nil, err
	}
	return parseBlacklistLines(profile.BlacklistedTags), nil
}

func (a *DanbooruAPI) ProcessTags(tags []string) (string, []string) {
	return processTagsCapped(tags, danbooruTagLimit)
}

func (a *DanbooruAPI) FullSearchPageLimit() int { return 1000 }

func (a *DanbooruAPI) PostLimitBreak(countThisPage, pageSize int) bool {
	return defaultBreak(countThisPage, pageSize)
}

func (a *DanbooruAPI) FullSearchDelay() time.Duration { return 0 }

func (a *DanbooruAPI) MultiGetDelay() time.Duration { return 100 * time.Millisecond }

// orderFromIDs は、並び順どおりのID列を ID -> 0始まりの位置 のマップに変換します。
// 同じIDが重複した場合は最初の位置を採用します。
func orderFromIDs(ids []uint64) map[uint64]int {
	order := make(map[uint64]int, len(ids))
	for i, id := range ids {
		if _, dup := order[id]; dup {
			continue
		}
		order[id] = i
	}
	return order
}
