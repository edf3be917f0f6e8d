// Package blacklist は、取得した投稿をレーティング・タグ・拡張子・アニメーションの条件で
// 除外するフィルタを提供します。
package blacklist

import (
	"slices"

	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
)

// animatedTag は、ignore_animated で除外対象となるメタタグです。
const animatedTag = "animated"

// Options は、Filter の構築に必要な条件です。
type Options struct {
	// Server は、サイト別ブラックリストを引くためのサーバー名です。
	Server string
	// Excluded は、呼び出し側が追加で除外するタグ（認証ユーザーのブラックリストを含む）です。
	Excluded []string
	// Ratings は、許可するレーティングです。空なら全て許可します。
	Ratings []model.Rating
	// DisableTags が true の場合、タグによる除外を行いません。
	DisableTags bool
	// IgnoreAnimated が true の場合、動画と "animated" タグ付きの投稿を除外します。
	IgnoreAnimated bool
	// ForcedExtension が ExtUnknown 以外なら、その拡張子の投稿のみを残します。
	ForcedExtension model.Extension
}

// Filter は、1回の抽出処理の間だけ使われる不変の投稿フィルタです。
// 構築後は読み取り専用のため、複数のゴルーチンから同時に Apply を呼び出せます。
type Filter struct {
	tags           map[string]struct{}
	ratings        []model.Rating // 昇順・重複なし
	disableTags    bool
	ignoreAnimated bool
	forcedExt      model.Extension
}

// New は、設定ファイルのグローバル・サイト別ブラックリストと opts を合成して Filter を構築します。
// cfg が nil の場合は opts.Excluded のみを使用します。
func New(cfg *config.Blacklist, opts Options) *Filter {
	f := &Filter{
		tags:           make(map[string]struct{}),
		disableTags:    opts.DisableTags,
		ignoreAnimated: opts.IgnoreAnimated,
		forcedExt:      opts.ForcedExtension,
	}

	var sources [][]string
	if cfg != nil {
		sources = append(sources, cfg.TagsFor(opts.Server))
	}
	sources = append(sources, opts.Excluded)
	for _, src := range sources {
		for _, raw := range src {
			if tag := model.NormalizeTag(raw); tag != "" {
				f.tags[tag] = struct{}{}
			}
		}
	}

	f.ratings = slices.Clone(opts.Ratings)
	slices.Sort(f.ratings)
	f.ratings = slices.Compact(f.ratings)
	return f
}

// Tags は、合成済みのブラックリストタグ数を返します。
func (f *Filter) Tags() int { return len(f.tags) }

// Apply は、posts から条件に合わない投稿を取り除き、除外数と残った投稿を返します。
// 各段階の除外数はスライス長の差分で数えるため、複数の理由に該当する投稿も1回だけ数えられます。
// 入力スライスは変更しません。
func (f *Filter) Apply(posts []model.Post) (uint64, []model.Post) {
	original := len(posts)
	out := slices.Clone(posts)

	if f.forcedExt != model.ExtUnknown {
		out = slices.DeleteFunc(out, func(p model.Post) bool {
			return p.Extension != f.forcedExt
		})
	}

	if len(f.ratings) > 0 {
		out = slices.DeleteFunc(out, func(p model.Post) bool {
			_, found := slices.BinarySearch(f.ratings, p.Rating)
			return !found
		})
	}

	if !f.disableTags && len(f.tags) > 0 {
		out = slices.DeleteFunc(out, f.hasBlacklistedTag)
	}

	// タグによる除外を無効にしていてもアニメーションの除外は行う
	if f.ignoreAnimated {
		out = slices.DeleteFunc(out, func(p model.Post) bool {
			return p.Extension.IsVideo() || p.HasTag(animatedTag)
		})
	}

	return uint64(original - len(out)), out
}

// Allows は、単一の投稿がフィルタを通過するかどうかを返します。
func (f *Filter) Allows(p model.Post) bool {
	removed, _ := f.Apply([]model.Post{p})
	return removed == 0
}

func (f *Filter) hasBlacklistedTag(p model.Post) bool {
	for _, t := range p.Tags {
		if _, ok := f.tags[t.Text]; ok {
			return true
		}
	}
	return false
}
