// Package model は、各サイトアダプタが生成する共通の投稿モデルと、
// それに付随する小さな値型（Rating, Extension, Tag）を定義します。
package model

import (
	"cmp"
	"slices"
)

// Post は、全アダプタ共通の正規化済み投稿レコードです。
// 同一性と順序はIDのみで決まります。URLとMD5は生成時点で必ず空でないことが保証されます。
type Post struct {
	ID        uint64
	Website   string // 取得元サーバー名 (例: "danbooru")
	URL       string // ファイルへの直接URL
	MD5       string
	Extension Extension
	Rating    Rating
	Tags      []Tag
	Score     int
}

// Equal は、IDによる同一性判定を行います。
func (p Post) Equal(other Post) bool {
	return p.ID == other.ID
}

// HasTag は、指定テキストのタグを持つかどうかを返します。text は正規化済みであることを前提とします。
func (p Post) HasTag(text string) bool {
	for _, t := range p.Tags {
		if t.Text == text {
			return true
		}
	}
	return false
}

// PromptTags は、キャプション生成用のタグのみを抽出します。
func (p Post) PromptTags() []Tag {
	var out []Tag
	for _, t := range p.Tags {
		if t.IsPromptTag() {
			out = append(out, t)
		}
	}
	return out
}

// ComparePostID は、ID昇順の比較関数です。
func ComparePostID(a, b Post) int {
	return cmp.Compare(a.ID, b.ID)
}

// SortDescending は、投稿をID降順（新しい順）に並べ替えます。
func SortDescending(posts []Post) {
	slices.SortFunc(posts, func(a, b Post) int {
		return ComparePostID(b, a)
	})
}

// CheckRequired は、URLとMD5が揃っているかを検証し、欠けていれば MissingFieldError を返します。
func (p Post) CheckRequired() error {
	if p.MD5 == "" {
		return &MissingFieldError{Site: p.Website, Field: "md5", PostID: p.ID}
	}
	if p.URL == "" {
		return &MissingFieldError{Site: p.Website, Field: "file_url", PostID: p.ID}
	}
	return nil
}
