package model

import "strings"

// Rating は、投稿のレーティング（年齢区分）を表すenumです。
// 値の大小はソート済みスライスでの二分探索にのみ使用し、意味的な順位ではありません。
type Rating int

const (
	RatingUnknown      Rating = iota // 解析不能 (ゼロ値)
	RatingSafe                       // 全年齢 (general / sensitive を含む)
	RatingQuestionable               // 要注意
	RatingExplicit                   // 成人向け
)

// ParseRating は、サイト固有の一文字コードまたは単語からRatingを得ます。
// 解析できない値は RatingUnknown になります。
func ParseRating(s string) Rating {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "g", "safe", "general", "sensitive":
		return RatingSafe
	case "q", "questionable":
		return RatingQuestionable
	case "e", "explicit":
		return RatingExplicit
	default:
		return RatingUnknown
	}
}

// String は Rating を短い識別子に変換します。
func (r Rating) String() string {
	switch r {
	case RatingSafe:
		return "safe"
	case RatingQuestionable:
		return "questionable"
	case RatingExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Code は、ファイル名などに使う一文字コードを返します。
func (r Rating) Code() string {
	switch r {
	case RatingSafe:
		return "s"
	case RatingQuestionable:
		return "q"
	case RatingExplicit:
		return "e"
	default:
		return "u"
	}
}
