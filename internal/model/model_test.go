package model

import (
	"errors"
	"sync"
	"testing"
)

func TestParseRating(t *testing.T) {
	cases := map[string]Rating{
		"s":            RatingSafe,
		"g":            RatingSafe,
		"general":      RatingSafe,
		"sensitive":    RatingSafe,
		"Q":            RatingQuestionable,
		"questionable": RatingQuestionable,
		"e":            RatingExplicit,
		"explicit":     RatingExplicit,
		"":             RatingUnknown,
		"x":            RatingUnknown,
	}
	for in, want := range cases {
		if got := ParseRating(in); got != want {
			t.Errorf("ParseRating(%q) = %v, 期待値 %v", in, got, want)
		}
	}
}

func TestRating_ZeroValueIsUnknown(t *testing.T) {
	var r Rating
	if r != RatingUnknown {
		t.Errorf("Ratingのゼロ値はUnknownであるべきです。実際値: %v", r)
	}
	if (Post{}).Rating != RatingUnknown {
		t.Error("レーティング未設定の投稿はUnknownとして扱われるべきです")
	}
}

func TestExtensionFromURL(t *testing.T) {
	cases := map[string]Extension{
		"https://cdn.example.net/data/ab/cd/abcd.jpeg":         ExtJPG,
		"https://cdn.example.net/abcd.PNG?download=1":          ExtPNG,
		"https://cdn.example.net/abcd.webm":                    ExtWEBM,
		"https://cdn.example.net/abcd.zip":                     ExtUgoira,
		"https://cdn.example.net/abcd":                         ExtUnknown,
		"abcd.mp4":                                             ExtMP4,
		"https://cdn.example.net/sample/sample-abcd.webp#frag": ExtWEBP,
	}
	for in, want := range cases {
		if got := ExtensionFromURL(in); got != want {
			t.Errorf("ExtensionFromURL(%q) = %v, 期待値 %v", in, got, want)
		}
	}

	if !ExtWEBM.IsVideo() || !ExtMP4.IsVideo() || !ExtUgoira.IsVideo() {
		t.Error("WEBM/MP4/Ugoira は動画として分類されるべきです")
	}
	if ExtGIF.IsVideo() || ExtJPG.IsVideo() {
		t.Error("GIF/JPG は動画として分類されるべきではありません")
	}
}

func TestTag_IsPromptTag(t *testing.T) {
	prompt := []TagType{TagCharacter, TagSpecies, TagGeneral, TagAny}
	for _, tt := range prompt {
		if !(Tag{Text: "x", Type: tt}).IsPromptTag() {
			t.Errorf("%v はプロンプトタグであるべきです", tt)
		}
	}
	nonPrompt := []TagType{TagAuthor, TagCopyright, TagLore, TagMeta}
	for _, tt := range nonPrompt {
		if (Tag{Text: "x", Type: tt}).IsPromptTag() {
			t.Errorf("%v はプロンプトタグであるべきではありません", tt)
		}
	}
}

func TestNormalizeTag(t *testing.T) {
	if got := NormalizeTag("  Hatsune_Miku "); got != "hatsune_miku" {
		t.Errorf("NormalizeTag の結果が不正です: %q", got)
	}
	// 結合文字列 (e + U+0301) は NFC で単一のコードポイントになる
	if got := NormalizeTag("Poke\u0301mon"); got != "pok\u00e9mon" {
		t.Errorf("NFC正規化されていません: %q", got)
	}
}

func TestNormalizeTag_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := NormalizeTag(" Hatsune_MIKU "); got != "hatsune_miku" {
					t.Errorf("並行実行時の正規化結果が不正です: %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSortDescending(t *testing.T) {
	posts := []Post{{ID: 3}, {ID: 10}, {ID: 1}, {ID: 7}}

	SortDescending(posts)

	for i := 1; i < len(posts); i++ {
		if posts[i-1].ID < posts[i].ID {
			t.Fatalf("降順になっていません: %v", posts)
		}
	}
}

func TestPost_CheckRequired(t *testing.T) {
	p := Post{ID: 5, Website: "danbooru", URL: "https://x/y.png"}

	err := p.CheckRequired()

	var mf *MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("MissingFieldError が返されるべきです: %v", err)
	}
	if mf.Field != "md5" {
		t.Errorf("欠落フィールドが不正です: %s", mf.Field)
	}
	if !errors.Is(err, ErrPostMap) {
		t.Error("MissingFieldError は ErrPostMap として判定できるべきです")
	}

	p.MD5 = "abc"
	if err := p.CheckRequired(); err != nil {
		t.Errorf("必須フィールドが揃っているのにエラーになりました: %v", err)
	}
}
