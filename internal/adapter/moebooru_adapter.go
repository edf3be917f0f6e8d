package adapter

import (
	"fmt"
	"strconv"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
)

// Moebooruは匿名ユーザーに6タグまでの検索を許可します。
const moebooruTagLimit = 6

// MoebooruPost は、Konachan/yande.re の /post.json が返す投稿の形です。
type MoebooruPost struct {
	ID      uint64 `json:"id"`
	MD5     string `json:"md5"`
	FileURL string `json:"file_url"`
	FileExt string `json:"file_ext"`
	Rating  string `json:"rating"`
	Score   int    `json:"score"`
	Tags    string `json:"tags"`
	Status  string `json:"status"`
}

// MoebooruPool は、/pool/show.json の応答です。posts はプール内の順序どおりに並びます。
type MoebooruPool struct {
	ID    uint64         `json:"id"`
	Name  string         `json:"name"`
	Posts []MoebooruPost `json:"posts"`
}

// MoebooruAPI は、Moebooru系サイトのURL構築と応答変換を実装します。
type MoebooruAPI struct {
	name string
}

// NewMoebooruAPI は、MoebooruAPIの新しいインスタンスを返します。
func NewMoebooruAPI(name string, _ Options) SiteAPI {
	return &MoebooruAPI{name: name}
}

func (a *MoebooruAPI) Name() string { return a.name }

func (a *MoebooruAPI) PostsURL(server config.ServerConfig, page, limit int, tagQuery string) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(capLimit(limit, server)),
		"tags":  tagQuery,
	})
}

// SinglePostURL は、単一投稿用のエンドポイントがないため id: メタタグで一覧を検索します。
func (a *MoebooruAPI) SinglePostURL(server config.ServerConfig, id uint64) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"tags": "id:" + strconv.FormatUint(id, 10),
	})
}

func (a *MoebooruAPI) PoolDetailsURL(server config.ServerConfig, poolID uint64) (string, error) {
	if !server.HasPool() {
		return "", fmt.Errorf("%w: %s はプールに対応していません", model.ErrUnsupportedOperation, server.Name)
	}
	return withQuery(server.PoolIdxURL, map[string]string{
		"id": strconv.FormatUint(poolID, 10),
	})
}

func (a *MoebooruAPI) ProfileURL(server config.ServerConfig, _ string) (string, error) {
	return "", fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, server.Name)
}

// DecodePostList は、一覧の応答本文をデコードします。
func (a *MoebooruAPI) DecodePostList(body []byte) ([]MoebooruPost, error) {
	var posts []MoebooruPost
	if err := decodeJSON(a.name, body, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// MapPostList は、ファイルURLを持つ投稿のみを共通モデルに変換します。
func (a *MoebooruAPI) MapPostList(raw []MoebooruPost) []model.Post {
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
func (a *MoebooruAPI) MapSinglePost(raw MoebooruPost) (model.Post, error) {
	if raw.ID == 0 {
		return model.Post{}, &model.MissingFieldError{Site: a.name, Field: "id"}
	}
	p := a.mapPost(raw)
	if err := p.CheckRequired(); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

func (a *MoebooruAPI) mapPost(r MoebooruPost) model.Post {
	ext := model.ParseExtension(r.FileExt)
	if ext == model.ExtUnknown {
		ext = model.ExtensionFromURL(r.FileURL)
	}
	return model.Post{
		ID:        r.ID,
		Website:   a.name,
		URL:       r.FileURL,
		MD5:       r.MD5,
		Extension: ext,
		Rating:    model.ParseRating(r.Rating),
		Tags:      model.SplitTagString(r.Tags, model.TagAny),
		Score:     r.Score,
	}
}

func (a *MoebooruAPI) ParsePostList(body []byte) ([]model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return nil, err
	}
	return a.MapPostList(raw), nil
}

// ParseSinglePost は、id: 検索の結果から先頭の1件を取り出します。
func (a *MoebooruAPI) ParseSinglePost(body []byte) (model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return model.Post{}, err
	}
	if len(raw) == 0 {
		return model.Post{}, &model.DeserializeError{Site: a.name, Err: errEmptyPostList}
	}
	return a.MapSinglePost(raw[0])
}

func (a *MoebooruAPI) ParsePoolDetails(body []byte) (map[uint64]int, error) {
	var pool MoebooruPool
	if err := decodeJSON(a.name, body, &pool); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(pool.Posts))
	for _, p := range pool.Posts {
		ids = append(ids, p.ID)
	}
	return orderFromIDs(ids), nil
}

func (a *MoebooruAPI) ParseProfile(_ []byte) ([]string, error) {
	return nil, fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, a.name)
}

func (a *MoebooruAPI) ProcessTags(tags []string) (string, []string) {
	return processTagsCapped(tags, moebooruTagLimit)
}

func (a *MoebooruAPI) FullSearchPageLimit() int { return 500 }

func (a *MoebooruAPI) PostLimitBreak(countThisPage, pageSize int) bool {
	return defaultBreak(countThisPage, pageSize)
}

func (a *MoebooruAPI) FullSearchDelay() time.Duration { return 200 * time.Millisecond }

func (a *MoebooruAPI) MultiGetDelay() time.Duration { return 200 * time.Millisecond }
