package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// TagType は、サイト固有のタグ名前空間を表します。
type TagType int

const (
	TagAny TagType = iota // 区別なし（カテゴリ情報を持たないサイト）
	TagAuthor
	TagCopyright
	TagCharacter
	TagSpecies
	TagGeneral
	TagLore
	TagMeta
)

func (t TagType) String() string {
	switch t {
	case TagAuthor:
		return "author"
	case TagCopyright:
		return "copyright"
	case TagCharacter:
		return "character"
	case TagSpecies:
		return "species"
	case TagGeneral:
		return "general"
	case TagLore:
		return "lore"
	case TagMeta:
		return "meta"
	default:
		return "any"
	}
}

// Tag は、タグ文字列とその種別の組です。
// フィルタリングにおける同一性は Text のみで判定します。
type Tag struct {
	Text string
	Type TagType
}

// NewTag は、正規化済みのTagを生成します。
func NewTag(text string, t TagType) Tag {
	return Tag{Text: NormalizeTag(text), Type: t}
}

// IsPromptTag は、キャプション生成に適したタグかどうかを返します。
func (t Tag) IsPromptTag() bool {
	switch t.Type {
	case TagAuthor, TagCopyright, TagLore, TagMeta:
		return false
	default:
		return true
	}
}

// NormalizeTag は、タグ文字列をNFC正規化した上で小文字化し、前後の空白を除去します。
// ブラックリストの比較とクエリ構築の双方でこの形に揃えます。
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Caser はゴルーチン間で共有できないため呼び出しごとに作る
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// SplitTagString は、空白区切りのタグ文字列を指定種別のTag列に変換します。
func SplitTagString(s string, t TagType) []Tag {
	fields := strings.Fields(s)
	tags := make([]Tag, 0, len(fields))
	for _, f := range fields {
		tags = append(tags, NewTag(f, t))
	}
	return tags
}
