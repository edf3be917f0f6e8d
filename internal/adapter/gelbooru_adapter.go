package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
)

var errEmptyPostList = errors.New("応答に投稿が含まれていません")

// GelbooruPost は、Gelbooru系DAPIの投稿の形です。
// Rule34などの派生サイトは md5 ではなく hash を返します。
type GelbooruPost struct {
	ID      uint64 `json:"id"`
	MD5     string `json:"md5"`
	Hash    string `json:"hash"`
	FileURL string `json:"file_url"`
	Image   string `json:"image"`
	Rating  string `json:"rating"`
	Score   int    `json:"score"`
	Tags    string `json:"tags"`
}

// gelbooruEnvelope は、gelbooru.com が返す {"@attributes":..., "post":[...]} 形式です。
type gelbooruEnvelope struct {
	Attributes struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Count  int `json:"count"`
	} `json:"@attributes"`
	Post []GelbooruPost `json:"post"`
}

// GelbooruAPI は、Gelbooru DAPI互換サイトのURL構築と応答変換を実装します。
// プールと認証のエンドポイントは持ちません。
type GelbooruAPI struct {
	name string
}

// NewGelbooruAPI は、GelbooruAPIの新しいインスタンスを返します。
func NewGelbooruAPI(name string, _ Options) SiteAPI {
	return &GelbooruAPI{name: name}
}

func (a *GelbooruAPI) Name() string { return a.name }

// PostsURL は、DAPIの一覧URLを構築します。pid は0始まりのため page-1 を渡します。
func (a *GelbooruAPI) PostsURL(server config.ServerConfig, page, limit int, tagQuery string) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"pid":   strconv.Itoa(page - 1),
		"limit": strconv.Itoa(capLimit(limit, server)),
		"tags":  tagQuery,
	})
}

func (a *GelbooruAPI) SinglePostURL(server config.ServerConfig, id uint64) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"id": strconv.FormatUint(id, 10),
	})
}

func (a *GelbooruAPI) PoolDetailsURL(server config.ServerConfig, _ uint64) (string, error) {
	return "", fmt.Errorf("%w: %s はプールに対応していません", model.ErrUnsupportedOperation, server.Name)
}

func (a *GelbooruAPI) ProfileURL(server config.ServerConfig, _ string) (string, error) {
	return "", fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, server.Name)
}

// DecodePostList は、一覧の応答本文をデコードします。
// 結果が0件のとき、サイトによっては空の本文や "post" キーのないオブジェクトを返します。
func (a *GelbooruAPI) DecodePostList(body []byte) ([]GelbooruPost, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var posts []GelbooruPost
		if err := decodeJSON(a.name, trimmed, &posts); err != nil {
			return nil, err
		}
		return posts, nil
	}
	var env gelbooruEnvelope
	if err := decodeJSON(a.name, trimmed, &env); err != nil {
		return nil, err
	}
	return env.Post, nil
}

// MapPostList は、ファイルURLとハッシュを持つ投稿のみを共通モデルに変換します。
func (a *GelbooruAPI) MapPostList(raw []GelbooruPost) []model.Post {
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

// MapSinglePost は、単一投稿を共通モデルに変換します。
func (a *GelbooruAPI) MapSinglePost(raw GelbooruPost) (model.Post, error) {
	if raw.ID == 0 {
		return model.Post{}, &model.MissingFieldError{Site: a.name, Field: "id"}
	}
	p := a.mapPost(raw)
	if err := p.CheckRequired(); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

func (a *GelbooruAPI) mapPost(r GelbooruPost) model.Post {
	md5 := r.MD5
	if md5 == "" {
		md5 = r.Hash
	}
	ext := model.ExtensionFromURL(r.FileURL)
	if ext == model.ExtUnknown && r.Image != "" {
		ext = model.ExtensionFromURL(r.Image)
	}
	return model.Post{
		ID:        r.ID,
		Website:   a.name,
		URL:       r.FileURL,
		MD5:       md5,
		Extension: ext,
		Rating:    model.ParseRating(r.Rating),
		Tags:      model.SplitTagString(r.Tags, model.TagAny),
		Score:     r.Score,
	}
}

func (a *GelbooruAPI) ParsePostList(body []byte) ([]model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return nil, err
	}
	return a.MapPostList(raw), nil
}

// ParseSinglePost は、id指定の一覧応答から先頭の1件を取り出します。
func (a *GelbooruAPI) ParseSinglePost(body []byte) (model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return model.Post{}, err
	}
	if len(raw) == 0 {
		return model.Post{}, &model.DeserializeError{Site: a.name, Err: errEmptyPostList}
	}
	return a.MapSinglePost(raw[0])
}

func (a *GelbooruAPI) ParsePoolDetails(_ []byte) (map[uint64]int, error) {
	return nil, fmt.Errorf("%w: %s はプールに対応していません", model.ErrUnsupportedOperation, a.name)
}

func (a *GelbooruAPI) ParseProfile(_ []byte) ([]string, error) {
	return nil, fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, a.name)
}

func (a *GelbooruAPI) ProcessTags(tags []string) (string, []string) {
	return processTagsCapped(tags, 0)
}

func (a *GelbooruAPI) FullSearchPageLimit() int { return 200 }

func (a *GelbooruAPI) PostLimitBreak(countThisPage, pageSize int) bool {
	return defaultBreak(countThisPage, pageSize)
}

func (a *GelbooruAPI) FullSearchDelay() time.Duration { return 100 * time.Millisecond }

func (a *GelbooruAPI) MultiGetDelay() time.Duration { return 100 * time.Millisecond }
