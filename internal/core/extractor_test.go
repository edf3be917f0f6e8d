package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"GoBooruDownloader/internal/adapter"
	"GoBooruDownloader/internal/config"
	"GoBooruDownloader/internal/model"
	"GoBooruDownloader/internal/network"
)

// noDelay は、テストを高速化するためにアダプタの待機時間を0にします。
type noDelay struct{ adapter.SiteAPI }

func (noDelay) FullSearchDelay() time.Duration { return 0 }
func (noDelay) MultiGetDelay() time.Duration   { return 0 }

// fakeBooru は、Danbooru互換のAPIを模したテスト用サーバーです。
type fakeBooru struct {
	mu       sync.Mutex
	posts    []adapter.DanbooruPost // ID降順
	pool     []uint64
	failIDs  map[uint64]bool
	user     string
	key      string
	profile  string
	requests []string
	queries  []string
	authSeen []bool
}

func newFakeBooru(total int) *fakeBooru {
	f := &fakeBooru{failIDs: map[uint64]bool{}}
	for id := total; id >= 1; id-- {
		tags := []string{"common"}
		if id%2 == 0 {
			tags = append(tags, "even")
		}
		if id > 10 {
			tags = append(tags, "big")
		}
		if id%5 == 0 {
			tags = append(tags, "guro")
		}
		rating := "g"
		if id%3 == 0 {
			rating = "e"
		}
		f.posts = append(f.posts, adapter.DanbooruPost{
			ID:               uint64(id),
			MD5:              fmt.Sprintf("%032d", id),
			FileURL:          fmt.Sprintf("https://cdn.example.com/%d.jpg", id),
			FileExt:          "jpg",
			Rating:           rating,
			TagStringGeneral: strings.Join(tags, " "),
		})
	}
	return f
}

func (f *fakeBooru) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL.Path)
	_, _, hasAuth := r.BasicAuth()
	f.authSeen = append(f.authSeen, hasAuth)

	switch {
	case r.URL.Path == "/posts.json":
		q := r.URL.Query()
		f.queries = append(f.queries, q.Get("tags"))
		if strings.Contains(q.Get("tags"), "nothing") {
			w.Write([]byte("[]"))
			return
		}
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		start := (page - 1) * limit
		end := min(start+limit, len(f.posts))
		if start >= len(f.posts) {
			w.Write([]byte("[]"))
			return
		}
		json.NewEncoder(w).Encode(f.posts[start:end])

	case strings.HasPrefix(r.URL.Path, "/posts/"):
		id, _ := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/posts/"), ".json"), 10, 64)
		if f.failIDs[id] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		for _, p := range f.posts {
			if p.ID == id {
				json.NewEncoder(w).Encode(p)
				return
			}
		}
		http.NotFound(w, r)

	case strings.HasPrefix(r.URL.Path, "/pools/"):
		json.NewEncoder(w).Encode(adapter.DanbooruPool{ID: 1, PostIDs: f.pool})

	case r.URL.Path == "/profile.json":
		user, key, ok := r.BasicAuth()
		if !ok || user != f.user || key != f.key {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"message":"Invalid API key"}`))
			return
		}
		json.NewEncoder(w).Encode(adapter.DanbooruProfile{Name: user, BlacklistedTags: f.profile})

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBooru) requestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.requests {
		if p == path {
			n++
		}
	}
	return n
}

func testServer(baseURL string, maxLimit int) config.ServerConfig {
	return config.ServerConfig{
		Name:         "danbooru",
		Server:       config.KindDanbooru,
		BaseURL:      baseURL,
		PostURL:      baseURL + "/posts/",
		PostListURL:  baseURL + "/posts.json",
		PoolIdxURL:   baseURL + "/pools/",
		MaxPostLimit: maxLimit,
		AuthURL:      baseURL + "/profile.json",
	}
}

func newTestExtractor(t *testing.T, fake *fakeBooru, maxLimit int, opts Options) (*PostExtractor, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	client, err := network.NewClient(config.NetworkSettings{UserAgent: "gbd-test"})
	if err != nil {
		t.Fatalf("NewClientの作成に失敗しました: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	server := testServer(ts.URL, maxLimit)
	api := noDelay{adapter.NewDanbooruAPI(server.Name, adapter.Options{})}
	return NewPostExtractor(server, api, client, opts), ts
}

func collect(t *testing.T, e *PostExtractor, startPage, limit int) ([]model.Post, int, uint64, error) {
	t.Helper()
	out := make(chan model.Post, 1024)
	counter := make(chan struct{}, 1024)
	removed, err := e.AsyncFetch(context.Background(), out, counter, startPage, limit)
	close(out)
	close(counter)

	var posts []model.Post
	for p := range out {
		posts = append(posts, p)
	}
	ticks := 0
	for range counter {
		ticks++
	}
	return posts, ticks, removed, err
}

func postIDs(posts []model.Post) []uint64 {
	ids := make([]uint64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFullSearch_LimitTruncation(t *testing.T) {
	// Arrange - 1ページ3件のサーバーに20件の投稿
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 3, Options{Tags: []string{"common"}})

	// Act
	queue, err := e.FullSearch(context.Background(), 1, 5)

	// Assert
	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	if queue.Len() != 5 {
		t.Fatalf("件数が期待値と異なります。期待値: 5, 実際値: %d", queue.Len())
	}
	if !equalIDs(postIDs(queue.Posts), []uint64{20, 19, 18, 17, 16}) {
		t.Errorf("結果が不正です: %v", postIDs(queue.Posts))
	}
	if got := fake.requestCount("/posts.json"); got != 2 {
		t.Errorf("上限到達後にページを取得し続けています (リクエスト数=%d)", got)
	}
	if cap(queue.Posts) != 5 {
		t.Errorf("余分な容量が解放されていません: cap=%d", cap(queue.Posts))
	}
	if len(queue.Tags) != 1 || queue.Tags[0] != "common" || queue.Imageboard.Name != "danbooru" {
		t.Errorf("キューのメタデータが不正です: %+v", queue)
	}
}

func TestFullSearch_FiltersAndSortsDescending(t *testing.T) {
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 6, Options{
		Tags:     []string{"common"},
		Excluded: []string{"guro"},
	})

	queue, err := e.FullSearch(context.Background(), 1, 0)

	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	// 5の倍数の4件が除外される
	if queue.Len() != 16 || e.Removed() != 4 {
		t.Errorf("件数が不正です: len=%d removed=%d", queue.Len(), e.Removed())
	}
	for i := 1; i < len(queue.Posts); i++ {
		if queue.Posts[i-1].ID < queue.Posts[i].ID {
			t.Fatalf("結果がID降順になっていません: %v", postIDs(queue.Posts))
		}
	}
	for _, p := range queue.Posts {
		if p.HasTag("guro") {
			t.Errorf("除外タグを持つ投稿が残っています: %d", p.ID)
		}
	}
	// 6, 6, 6, 2件 と取得し、4ページ目が最終ページと判定される
	if got := fake.requestCount("/posts.json"); got != 4 {
		t.Errorf("ページ取得回数が期待値と異なります。期待値: 4, 実際値: %d", got)
	}
}

func TestFullSearch_ExactPageSizeFetchesOneExtraPage(t *testing.T) {
	fake := newFakeBooru(10)
	e, _ := newTestExtractor(t, fake, 5, Options{})

	queue, err := e.FullSearch(context.Background(), 1, 0)

	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	if queue.Len() != 10 {
		t.Errorf("件数が不正です: %d", queue.Len())
	}
	if got := fake.requestCount("/posts.json"); got != 3 {
		t.Errorf("最終ページがちょうど満杯の場合は空ページを1回取得するはずです (リクエスト数=%d)", got)
	}
}

func TestShortFirstPageDoesNotEndSearch(t *testing.T) {
	// Arrange - 1ページ目のID 9はファイルURLを持たずマッピング時に除外され、1ページ目が4件になる
	newFake := func() *fakeBooru {
		fake := newFakeBooru(10)
		for i := range fake.posts {
			if fake.posts[i].ID == 9 {
				fake.posts[i].FileURL = ""
			}
		}
		return fake
	}
	want := []uint64{10, 8, 7, 6, 5, 4, 3, 2, 1}

	t.Run("FullSearch", func(t *testing.T) {
		fake := newFake()
		e, _ := newTestExtractor(t, fake, 5, Options{})

		// Act
		queue, err := e.FullSearch(context.Background(), 1, 0)

		// Assert
		if err != nil {
			t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
		}
		if !equalIDs(postIDs(queue.Posts), want) {
			t.Errorf("結果が不正です。期待値: %v, 実際値: %v", want, postIDs(queue.Posts))
		}
		if got := fake.requestCount("/posts.json"); got != 3 {
			t.Errorf("ページ取得回数が期待値と異なります。期待値: 3, 実際値: %d", got)
		}
	})

	t.Run("AsyncFetch", func(t *testing.T) {
		fake := newFake()
		e, _ := newTestExtractor(t, fake, 5, Options{})

		// Act
		posts, ticks, _, err := collect(t, e, 1, 0)

		// Assert
		if err != nil {
			t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
		}
		if !equalIDs(postIDs(posts), want) || ticks != len(want) {
			t.Errorf("送信された投稿が不正です。期待値: %v, 実際値: %v (通知=%d)", want, postIDs(posts), ticks)
		}
	})
}

func TestFullSearch_ShortLaterPageEndsSearch(t *testing.T) {
	// Arrange - 開始ページ以降の件数不足は最終ページとして扱う
	fake := newFakeBooru(8)
	e, _ := newTestExtractor(t, fake, 5, Options{})

	// Act
	queue, err := e.FullSearch(context.Background(), 1, 0)

	// Assert
	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	if queue.Len() != 8 {
		t.Errorf("件数が不正です: %d", queue.Len())
	}
	if got := fake.requestCount("/posts.json"); got != 2 {
		t.Errorf("2ページ目で検索を終えるはずです (リクエスト数=%d)", got)
	}
}

func TestFullSearch_RatingFilter(t *testing.T) {
	fake := newFakeBooru(12)
	e, _ := newTestExtractor(t, fake, 100, Options{Ratings: []model.Rating{model.RatingSafe}})

	queue, err := e.FullSearch(context.Background(), 1, 0)

	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	for _, p := range queue.Posts {
		if p.Rating != model.RatingSafe {
			t.Errorf("許可されていないレーティングが残っています: %+v", p)
		}
	}
	if queue.Len() != 8 {
		t.Errorf("件数が不正です。期待値: 8, 実際値: %d", queue.Len())
	}
}

func TestFullSearch_EmptyFirstPage(t *testing.T) {
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 10, Options{Tags: []string{"nothing"}})

	_, err := e.FullSearch(context.Background(), 1, 0)

	if !errors.Is(err, model.ErrZeroPosts) {
		t.Fatalf("ErrZeroPosts が返されるべきです: %v", err)
	}
}

func TestFullSearch_AllFilteredOut(t *testing.T) {
	fake := newFakeBooru(5)
	e, _ := newTestExtractor(t, fake, 10, Options{Excluded: []string{"common"}})

	_, err := e.FullSearch(context.Background(), 1, 0)

	if !errors.Is(err, model.ErrZeroPosts) {
		t.Fatalf("全件除外された場合は ErrZeroPosts が返されるべきです: %v", err)
	}
	if e.Removed() != 5 {
		t.Errorf("除外数が不正です: %d", e.Removed())
	}
}

func TestZeroPage(t *testing.T) {
	fake := newFakeBooru(5)
	e, _ := newTestExtractor(t, fake, 10, Options{})

	if _, err := e.FullSearch(context.Background(), 0, 0); !errors.Is(err, model.ErrZeroPage) {
		t.Errorf("FullSearch はページ0で ErrZeroPage を返すべきです: %v", err)
	}
	if _, _, _, err := collect(t, e, 0, 0); !errors.Is(err, model.ErrZeroPage) {
		t.Errorf("AsyncFetch はページ0で ErrZeroPage を返すべきです: %v", err)
	}
	if _, err := e.Search(context.Background(), 0); !errors.Is(err, model.ErrZeroPage) {
		t.Errorf("Search はページ0で ErrZeroPage を返すべきです: %v", err)
	}
	if got := fake.requestCount("/posts.json"); got != 0 {
		t.Errorf("ページ0ではリクエストを送信しないべきです (リクエスト数=%d)", got)
	}
}

func TestSearch_SinglePage(t *testing.T) {
	fake := newFakeBooru(30)
	e, _ := newTestExtractor(t, fake, 10, Options{})

	queue, err := e.Search(context.Background(), 2)

	if err != nil {
		t.Fatalf("Searchが予期せぬエラーを返しました: %v", err)
	}
	if !equalIDs(postIDs(queue.Posts), []uint64{20, 19, 18, 17, 16, 15, 14, 13, 12, 11}) {
		t.Errorf("2ページ目の内容が不正です: %v", postIDs(queue.Posts))
	}
	if _, err := e.Search(context.Background(), 9); !errors.Is(err, model.ErrZeroPosts) {
		t.Errorf("空のページは ErrZeroPosts になるべきです: %v", err)
	}
}

func TestAsyncFetch_LimitAndCounter(t *testing.T) {
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 3, Options{})

	posts, ticks, _, err := collect(t, e, 1, 5)

	if err != nil {
		t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
	}
	if len(posts) != 5 || ticks != 5 {
		t.Errorf("送信件数が不正です。期待値: 5, 実際値: posts=%d ticks=%d", len(posts), ticks)
	}
}

func TestAsyncFetch_PositiveFilterBeyondTagCap(t *testing.T) {
	// Arrange - Danbooruはクエリに2タグまでしか載せられない
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 100, Options{Tags: []string{"common", "even", "big"}})

	// Act
	posts, _, removed, err := collect(t, e, 1, 0)

	// Assert
	if err != nil {
		t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
	}
	if len(fake.queries) == 0 || fake.queries[0] != "common even" {
		t.Errorf("APIクエリは先頭2タグに切り詰められるべきです: %v", fake.queries)
	}
	if !equalIDs(postIDs(posts), []uint64{20, 18, 16, 14, 12}) {
		t.Errorf("全タグを持つ投稿のみが送信されるべきです: %v", postIDs(posts))
	}
	for _, p := range posts {
		for _, tag := range []string{"common", "even", "big"} {
			if !p.HasTag(tag) {
				t.Errorf("投稿 %d にタグ %s がありません", p.ID, tag)
			}
		}
	}
	if removed != 15 {
		t.Errorf("除外数が不正です。期待値: 15, 実際値: %d", removed)
	}
}

func TestAsyncFetch_NegatedAndMetaTerms(t *testing.T) {
	fake := newFakeBooru(10)
	e, _ := newTestExtractor(t, fake, 100, Options{Tags: []string{"-even", "rating:g"}})

	posts, _, _, err := collect(t, e, 1, 0)

	if err != nil {
		t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
	}
	for _, p := range posts {
		if p.HasTag("even") {
			t.Errorf("否定タグを持つ投稿が送信されています: %d", p.ID)
		}
	}
	if len(posts) != 5 {
		t.Errorf("メタタグはクライアント側で照合しないはずです: %v", postIDs(posts))
	}
}

func TestAsyncFetch_CancelledConsumer(t *testing.T) {
	fake := newFakeBooru(20)
	e, _ := newTestExtractor(t, fake, 100, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Post)
	done := make(chan error, 1)
	go func() {
		_, err := e.AsyncFetch(ctx, out, nil, 1, 0)
		done <- err
	}()

	<-out
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("受信側の停止は context.Canceled として伝播するべきです: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AsyncFetch が終了しません")
	}
}

func TestPool_OrderAndReverse(t *testing.T) {
	fake := newFakeBooru(10)
	fake.pool = []uint64{5, 3, 9, 1}

	tests := []struct {
		name   string
		latest bool
		want   []uint64
	}{
		{name: "プール順", latest: false, want: []uint64{5, 3, 9, 1}},
		{name: "逆順", latest: true, want: []uint64{1, 9, 3, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestExtractor(t, fake, 100, Options{})
			e.SetupPoolDownload(1, tt.latest)

			posts, ticks, _, err := collect(t, e, 1, 0)

			if err != nil {
				t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
			}
			if !equalIDs(postIDs(posts), tt.want) {
				t.Errorf("送信順が不正です。期待値: %v, 実際値: %v", tt.want, postIDs(posts))
			}
			if ticks != len(tt.want) {
				t.Errorf("通知回数が不正です: %d", ticks)
			}
		})
	}
}

func TestPool_SkipsFailedMemberAndFilters(t *testing.T) {
	fake := newFakeBooru(10)
	fake.pool = []uint64{5, 2, 3, 9, 4}
	fake.failIDs[3] = true
	e, _ := newTestExtractor(t, fake, 100, Options{Excluded: []string{"guro"}})
	e.SetupPoolDownload(7, false)

	posts, _, removed, err := collect(t, e, 1, 4)

	if err != nil {
		t.Fatalf("AsyncFetchが予期せぬエラーを返しました: %v", err)
	}
	// 先頭4件 (5, 2, 3, 9) のうち、5は除外タグ、3は取得失敗
	if !equalIDs(postIDs(posts), []uint64{2, 9}) {
		t.Errorf("送信結果が不正です: %v", postIDs(posts))
	}
	if removed != 1 {
		t.Errorf("除外数が不正です。期待値: 1, 実際値: %d", removed)
	}
	if got := fake.requestCount("/posts/4.json"); got != 0 {
		t.Errorf("limit外の投稿を取得しています")
	}
}

func TestFetchPoolIdxs_TruncatesInPoolOrder(t *testing.T) {
	fake := newFakeBooru(10)
	fake.pool = []uint64{8, 2, 6, 4}
	e, _ := newTestExtractor(t, fake, 100, Options{})

	order, err := e.FetchPoolIdxs(context.Background(), 1, 2)

	if err != nil {
		t.Fatalf("FetchPoolIdxsが予期せぬエラーを返しました: %v", err)
	}
	if len(order) != 2 || order[8] != 0 || order[2] != 1 {
		t.Errorf("プール順の先頭2件に絞り込まれるべきです: %v", order)
	}
}

func TestPool_UnsupportedServer(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer ts.Close()

	server := config.ServerConfig{
		Name:         "gelbooru",
		Server:       config.KindGelbooru,
		BaseURL:      ts.URL,
		PostListURL:  ts.URL + "/index.php?page=dapi&s=post&q=index&json=1",
		MaxPostLimit: 100,
	}
	client, _ := network.NewClient(config.NetworkSettings{})
	e := NewPostExtractor(server, adapter.NewGelbooruAPI(server.Name, adapter.Options{}), client, Options{Logger: log.New(io.Discard, "", 0)})
	e.SetupPoolDownload(1, false)

	_, err := e.AsyncFetch(context.Background(), make(chan model.Post, 1), nil, 1, 0)

	if !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Fatalf("ErrUnsupportedOperation が返されるべきです: %v", err)
	}
	if hits != 0 {
		t.Errorf("非対応の操作でリクエストが送信されています (hits=%d)", hits)
	}
}

func TestGetPosts_FailsFast(t *testing.T) {
	fake := newFakeBooru(10)
	fake.failIDs[4] = true
	e, _ := newTestExtractor(t, fake, 100, Options{})

	_, err := e.GetPosts(context.Background(), []uint64{2, 4, 6})

	var connErr *model.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("ConnectionError が返されるべきです: %v", err)
	}
	var httpErr *network.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("HTTPError を辿れるべきです: %v", err)
	}
	if got := fake.requestCount("/posts/6.json"); got != 0 {
		t.Errorf("失敗後に残りの投稿を取得しています")
	}

	posts, err := e.GetPosts(context.Background(), []uint64{2, 6})
	if err != nil || !equalIDs(postIDs(posts), []uint64{2, 6}) {
		t.Errorf("指定順に取得されるべきです: %v (%v)", postIDs(posts), err)
	}
}

func TestAuth(t *testing.T) {
	fake := newFakeBooru(10)
	fake.user, fake.key, fake.profile = "alice", "secret", "even\nbig common"
	e, _ := newTestExtractor(t, fake, 100, Options{})

	err := e.Auth(context.Background(), &config.Credentials{Username: "alice", APIKey: "wrong"})
	if !errors.Is(err, model.ErrAuthentication) {
		t.Fatalf("ErrAuthentication が返されるべきです: %v", err)
	}
	if e.AuthState() != NotAuthenticated {
		t.Error("認証失敗後は未認証のままであるべきです")
	}

	if err := e.Auth(context.Background(), &config.Credentials{Username: "alice", APIKey: "secret"}); err != nil {
		t.Fatalf("Authが予期せぬエラーを返しました: %v", err)
	}
	if e.AuthState() != Authenticated {
		t.Error("認証成功後は認証済みになるべきです")
	}

	queue, err := e.FullSearch(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("FullSearchが予期せぬエラーを返しました: %v", err)
	}
	// ユーザーのブラックリスト "even" が適用され、複合条件の行は無視される
	if !equalIDs(postIDs(queue.Posts), []uint64{9, 7, 5, 3, 1}) {
		t.Errorf("ユーザーのブラックリストが適用されていません: %v", postIDs(queue.Posts))
	}
	fake.mu.Lock()
	last := fake.authSeen[len(fake.authSeen)-1]
	fake.mu.Unlock()
	if !last {
		t.Error("認証後のリクエストにBasic認証が付与されていません")
	}
}

func TestPostQueue_Prepare(t *testing.T) {
	q := &PostQueue{Posts: make([]model.Post, 0, 10)}
	for id := uint64(6); id >= 1; id-- {
		q.Posts = append(q.Posts, model.Post{ID: id})
	}

	q.Prepare(0)
	if q.Len() != 6 || cap(q.Posts) != 6 {
		t.Errorf("limit 0 では切り詰めずに容量のみ縮めるべきです: len=%d cap=%d", q.Len(), cap(q.Posts))
	}

	q.Prepare(3)
	if !equalIDs(postIDs(q.Posts), []uint64{6, 5, 4}) {
		t.Errorf("並び順を保ったまま切り詰めるべきです: %v", postIDs(q.Posts))
	}
}
