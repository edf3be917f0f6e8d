package model

import (
	"net/url"
	"path"
	"strings"
)

// Extension は、投稿ファイルの種類を表すenumです。
type Extension int

const (
	ExtUnknown Extension = iota
	ExtJPG
	ExtPNG
	ExtWEBP
	ExtGIF
	ExtWEBM
	ExtMP4
	ExtUgoira // pixivうごイラ (zip)
)

// ParseExtension は、拡張子文字列（先頭の '.' は任意）からExtensionを得ます。
func ParseExtension(s string) Extension {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return ExtJPG
	case "png":
		return ExtPNG
	case "webp":
		return ExtWEBP
	case "gif":
		return ExtGIF
	case "webm":
		return ExtWEBM
	case "mp4":
		return ExtMP4
	case "zip":
		return ExtUgoira
	default:
		return ExtUnknown
	}
}

// ExtensionFromURL は、ファイルURLまたはファイル名の末尾からExtensionを推定します。
// クエリ文字列やフラグメントは無視します。
func ExtensionFromURL(rawURL string) Extension {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return ParseExtension(path.Ext(p))
}

// IsVideo は、動画またはアニメーションコンテナかどうかを返します。
// GIFは画像として扱い、"animated" タグ側で判定します。
func (e Extension) IsVideo() bool {
	switch e {
	case ExtWEBM, ExtMP4, ExtUgoira:
		return true
	default:
		return false
	}
}

// String は保存時に使うファイル拡張子（'.'なし）を返します。
func (e Extension) String() string {
	switch e {
	case ExtJPG:
		return "jpg"
	case ExtPNG:
		return "png"
	case ExtWEBP:
		return "webp"
	case ExtGIF:
		return "gif"
	case ExtWEBM:
		return "webm"
	case ExtMP4:
		return "mp4"
	case ExtUgoira:
		return "zip"
	default:
		return "bin"
	}
}
