package download

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"GoBooruDownloader/internal/model"
)

// DefaultFilenameFormat は、ファイル名フォーマット未指定時の既定値です。
const DefaultFilenameFormat = "{md5}.{ext}"

// GenerateFileName は、フォーマット文字列の変数を投稿の値で置換したファイル名を返します。
// 使用できる変数は {id}, {md5}, {ext}, {website}, {rating} です。
func GenerateFileName(format string, post model.Post) (string, error) {
	if format == "" {
		format = DefaultFilenameFormat
	}

	md5 := post.MD5
	if md5 == "" {
		md5 = "unknown"
	}
	website := post.Website
	if website == "" {
		website = "unknown"
	}

	r := strings.NewReplacer(
		"{id}", strconv.FormatUint(post.ID, 10),
		"{md5}", md5,
		"{ext}", post.Extension.String(),
		"{website}", SanitizeFilename(website),
		"{rating}", post.Rating.Code(),
	)
	name := SanitizeFilename(r.Replace(format))

	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("ファイル名フォーマット '%s' から有効なファイル名を生成できません (id=%d)", format, post.ID)
	}
	if filepath.Ext(name) == "" {
		name += "." + post.Extension.String()
	}
	return name, nil
}

// SanitizeFilename は、ファイル名として使用できない文字を全角文字に置き換えます。
func SanitizeFilename(name string) string {
	r := strings.NewReplacer(
		"/", "／",
		"\\", "＼",
		":", "：",
		"*", "＊",
		"?", "？",
		"\"", "”",
		"<", "＜",
		">", "＞",
		"|", "｜",
	)
	return r.Replace(name)
}

// CaptionPath は、画像ファイルに対応するキャプションファイルのパスを返します。
func CaptionPath(filePath string) string {
	return strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".txt"
}

// Caption は、プロンプト向けのタグをカンマ区切りで連結したキャプションを返します。
func Caption(post model.Post) string {
	tags := post.PromptTags()
	texts := make([]string, 0, len(tags))
	for _, t := range tags {
		texts = append(texts, strings.ReplaceAll(t.Text, "_", " "))
	}
	return strings.Join(texts, ", ")
}
