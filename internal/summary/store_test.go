package summary

import (
	"context"
	"path/filepath"
	"testing"

	"GoBooruDownloader/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "summary.db"))
	if err != nil {
		t.Fatalf("Openに失敗しました: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Downloads(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := openTestStore(t)
	p1 := model.Post{ID: 10, Website: "danbooru", MD5: "aaa"}
	p2 := model.Post{ID: 12, Website: "danbooru", MD5: "bbb"}
	other := model.Post{ID: 10, Website: "e621", MD5: "ccc"}

	// Act
	for _, p := range []model.Post{p1, p2, other} {
		if err := store.RecordDownload(ctx, p, "/tmp/"+p.MD5); err != nil {
			t.Fatalf("RecordDownloadに失敗しました: %v", err)
		}
	}

	// Assert
	ok, err := store.HasDownloaded(ctx, "danbooru", 10)
	if err != nil || !ok {
		t.Errorf("記録済みの投稿が見つかりません: %v", err)
	}
	if ok, _ := store.HasDownloaded(ctx, "danbooru", 11); ok {
		t.Error("未記録の投稿がダウンロード済みと判定されました")
	}

	records, err := store.Downloads(ctx, "danbooru")
	if err != nil {
		t.Fatalf("Downloadsに失敗しました: %v", err)
	}
	if len(records) != 2 || records[0].PostID != 12 || records[1].Path != "/tmp/aaa" {
		t.Errorf("記録の内容が不正です: %+v", records)
	}
	if all, _ := store.Downloads(ctx, ""); len(all) != 3 {
		t.Errorf("全サーバーの記録数が不正です: %d", len(all))
	}

	if err := store.Forget(ctx, "danbooru", 10); err != nil {
		t.Fatalf("Forgetに失敗しました: %v", err)
	}
	if ok, _ := store.HasDownloaded(ctx, "danbooru", 10); ok {
		t.Error("削除した記録が残っています")
	}
	if ok, _ := store.HasDownloaded(ctx, "e621", 10); !ok {
		t.Error("別サーバーの記録まで削除されています")
	}
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	key := QueryKey([]string{"Solo", "1girl"})

	if _, ok, err := store.LastPostID(ctx, "danbooru", key); ok || err != nil {
		t.Fatalf("初回は記録なしであるべきです: ok=%v err=%v", ok, err)
	}

	store.RecordRun(ctx, "danbooru", key, 500)
	store.RecordRun(ctx, "danbooru", key, 300)

	id, ok, err := store.LastPostID(ctx, "danbooru", QueryKey([]string{"1girl", "solo"}))
	if err != nil || !ok {
		t.Fatalf("記録が見つかりません: %v", err)
	}
	if id != 500 {
		t.Errorf("最新IDは小さい値で上書きされないはずです: %d", id)
	}
}

func TestQueryKeyAndFilterNewer(t *testing.T) {
	if got := QueryKey([]string{"b", " A ", ""}); got != "a b" {
		t.Errorf("QueryKey が不正です: %q", got)
	}

	posts := []model.Post{{ID: 9}, {ID: 7}, {ID: 5}}
	newer := FilterNewer(posts, 6)
	if len(newer) != 2 || newer[1].ID != 7 {
		t.Errorf("FilterNewer の結果が不正です: %+v", newer)
	}
	if posts[2].ID != 5 {
		t.Error("入力スライスが変更されています")
	}
}
