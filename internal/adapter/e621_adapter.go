package adapter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
)

// e621は1クエリあたり40タグまで受け付けます。
const e621TagLimit = 40

// E621File は、投稿ファイルの情報です。削除済み投稿や権限が必要な投稿では url が null になります。
type E621File struct {
	Ext string  `json:"ext"`
	MD5 string  `json:"md5"`
	URL *string `json:"url"`
}

// E621Score は、投稿のスコア内訳です。
type E621Score struct {
	Total int `json:"total"`
}

// E621Tags は、カテゴリ別に分かれたタグ一覧です。
type E621Tags struct {
	General   []string `json:"general"`
	Artist    []string `json:"artist"`
	Copyright []string `json:"copyright"`
	Character []string `json:"character"`
	Species   []string `json:"species"`
	Lore      []string `json:"lore"`
	Meta      []string `json:"meta"`
	Invalid   []string `json:"invalid"`
}

// E621Post は、e621の投稿の形です。
type E621Post struct {
	ID     uint64    `json:"id"`
	File   E621File  `json:"file"`
	Score  E621Score `json:"score"`
	Tags   E621Tags  `json:"tags"`
	Rating string    `json:"rating"`
}

// E621PostList は、/posts.json の応答です。
type E621PostList struct {
	Posts []E621Post `json:"posts"`
}

// E621SinglePost は、/posts/<id>.json の応答です。
type E621SinglePost struct {
	Post E621Post `json:"post"`
}

// E621Pool は、/pools/<id>.json の応答です。
type E621Pool struct {
	ID      uint64   `json:"id"`
	Name    string   `json:"name"`
	PostIDs []uint64 `json:"post_ids"`
}

// E621User は、/users/<name>.json の応答のうち使用する部分です。
type E621User struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	BlacklistedTags string `json:"blacklisted_tags"`
}

// E621API は、e621/e926 固有のURL構築と応答変換を実装します。
type E621API struct {
	name string
}

// NewE621API は、E621APIの新しいインスタンスを返します。
func NewE621API(name string, _ Options) SiteAPI {
	return &E621API{name: name}
}

func (a *E621API) Name() string { return a.name }

func (a *E621API) PostsURL(server config.ServerConfig, page, limit int, tagQuery string) (string, error) {
	return withQuery(server.PostListURL, map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(capLimit(limit, server)),
		"tags":  tagQuery,
	})
}

func (a *E621API) SinglePostURL(server config.ServerConfig, id uint64) (string, error) {
	prefix := server.PostURL
	if prefix == "" {
		prefix = strings.TrimSuffix(server.BaseURL, "/") + "/posts/"
	}
	return joinID(prefix, id)
}

func (a *E621API) PoolDetailsURL(server config.ServerConfig, poolID uint64) (string, error) {
	if !server.HasPool() {
		return "", fmt.Errorf("%w: %s はプールに対応していません", model.ErrUnsupportedOperation, server.Name)
	}
	return joinID(server.PoolIdxURL, poolID)
}

// ProfileURL は、/users/<username>.json を返します。e621ではユーザー名が必須です。
func (a *E621API) ProfileURL(server config.ServerConfig, username string) (string, error) {
	if !server.HasAuth() {
		return "", fmt.Errorf("%w: %s は認証に対応していません", model.ErrUnsupportedOperation, server.Name)
	}
	if username == "" {
		return "", fmt.Errorf("%s の認証にはユーザー名が必要です", server.Name)
	}
	u, err := url.Parse(server.AuthURL)
	if err != nil {
		return "", fmt.Errorf("URLの解析に失敗しました (%s): %w", server.AuthURL, err)
	}
	return u.JoinPath(username + ".json").String(), nil
}

// DecodePostList は、一覧の応答本文をデコードします。
func (a *E621API) DecodePostList(body []byte) ([]E621Post, error) {
	var list E621PostList
	if err := decodeJSON(a.name, body, &list); err != nil {
		return nil, err
	}
	return list.Posts, nil
}

// MapPostList は、ファイルURLを持つ投稿のみを共通モデルに変換します。
func (a *E621API) MapPostList(raw []E621Post) []model.Post {
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
func (a *E621API) MapSinglePost(raw E621Post) (model.Post, error) {
	if raw.ID == 0 {
		return model.Post{}, &model.MissingFieldError{Site: a.name, Field: "id"}
	}
	p := a.mapPost(raw)
	if err := p.CheckRequired(); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

func (a *E621API) mapPost(r E621Post) model.Post {
	var fileURL string
	if r.File.URL != nil {
		fileURL = *r.File.URL
	}
	ext := model.ParseExtension(r.File.Ext)
	if ext == model.ExtUnknown {
		ext = model.ExtensionFromURL(fileURL)
	}

	groups := []struct {
		texts []string
		kind  model.TagType
	}{
		{r.Tags.Artist, model.TagAuthor},
		{r.Tags.Copyright, model.TagCopyright},
		{r.Tags.Character, model.TagCharacter},
		{r.Tags.Species, model.TagSpecies},
		{r.Tags.General, model.TagGeneral},
		{r.Tags.Lore, model.TagLore},
		{r.Tags.Meta, model.TagMeta},
	}
	var tags []model.Tag
	for _, g := range groups {
		for _, text := range g.texts {
			tags = append(tags, model.NewTag(text, g.kind))
		}
	}

	return model.Post{
		ID:        r.ID,
		Website:   a.name,
		URL:       fileURL,
		MD5:       r.File.MD5,
		Extension: ext,
		Rating:    model.ParseRating(r.Rating),
		Tags:      tags,
		Score:     r.Score.Total,
	}
}

func (a *E621API) ParsePostList(body []byte) ([]model.Post, error) {
	raw, err := a.DecodePostList(body)
	if err != nil {
		return nil, err
	}
	return a.MapPostList(raw), nil
}

func (a *E621API) ParseSinglePost(body []byte) (model.Post, error) {
	var single E621SinglePost
	if err := decodeJSON(a.name, body, &single); err != nil {
		return model.Post{}, err
	}
	return a.MapSinglePost(single.Post)
}

func (a *E621API) ParsePoolDetails(body []byte) (map[uint64]int, error) {
	var pool E621Pool
	if err := decodeJSON(a.name, body, &pool); err != nil {
		return nil, err
	}
	return orderFromIDs(pool.PostIDs), nil
}

func (a *E621API) ParseProfile(body []byte) ([]string, error) {
	var user E621User
	if err := decodeJSON(a.name, body, &user); err != nil {
		return nil, err
	}
	return parseBlacklistLines(user.BlacklistedTags), nil
}

func (a *E621API) ProcessTags(tags []string) (string, []string) {
	return processTagsCapped(tags, e621TagLimit)
}

func (a *E621API) FullSearchPageLimit() int { return 750 }

func (a *E621API) PostLimitBreak(countThisPage, pageSize int) bool {
	return defaultBreak(countThisPage, pageSize)
}

// e621のAPIは1秒あたり2リクエストまでです。
func (a *E621API) FullSearchDelay() time.Duration { return 500 * time.Millisecond }

func (a *E621API) MultiGetDelay() time.Duration { return 500 * time.Millisecond }
