package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/cache/cachetest"
)

func mustNoErr[T any](v T, err error) func(t *testing.T) T {
	return func(t *testing.T) T {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v
	}
}

// TestMemoryCaches_Conformance はプロセス内キャッシュが共通の振る舞いを満たすことを検証する。
func TestMemoryCaches_Conformance(t *testing.T) {
	cachetest.Run(t, cachetest.Backend{
		Articles: func(t *testing.T) cache.ArticleCache {
			return mustNoErr(NewArticleCache(10))(t)
		},
		LastView: func(t *testing.T, maxPerUser int) cache.LastViewCache {
			return mustNoErr(NewLastViewCache(maxPerUser, 10))(t)
		},
		Settings: func(t *testing.T) cache.SettingsCache {
			return mustNoErr(NewSettingsCache(10))(t)
		},
		UserIDs: func(t *testing.T) cache.UserIDCache {
			return mustNoErr(NewUserIDCache(10))(t)
		},
	})
}

// TestConstructors_RejectNonPositiveCapacity は容量0以下が拒否されることを検証する。
func TestConstructors_RejectNonPositiveCapacity(t *testing.T) {
	if _, err := NewArticleCache(0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewArticleCache(0) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := NewLastViewCache(0, 10); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewLastViewCache(0, 10) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := NewLastViewCache(10, -1); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewLastViewCache(10, -1) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := NewSettingsCache(-5); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewSettingsCache(-5) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := NewUserIDCache(0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewUserIDCache(0) err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := NewCaches(Config{MaxArticles: 1, RecentPerUser: 1, MaxUsers: 0}); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("NewCaches err = %v, want ErrInvalidCapacity", err)
	}
}

// TestArticleCache_EvictsLeastRecentlyUsed は容量N+1件目の書き込みで最も古く使用されたキーが追い出されることを検証する。
func TestArticleCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := mustNoErr(NewArticleCache(3))(t)

	for _, id := range []int64{1, 2, 3} {
		_ = c.Update(ctx, cachetest.SampleArticle(id, "ru"))
	}
	_ = c.Update(ctx, cachetest.SampleArticle(4, "ru"))

	if got, _ := c.Get(ctx, "ru", 1); got != nil {
		t.Error("pageid 1 should have been evicted")
	}
	for _, id := range []int64{2, 3, 4} {
		if got, _ := c.Get(ctx, "ru", id); got == nil {
			t.Errorf("pageid %d should be present", id)
		}
	}
}

// TestArticleCache_GetMovesToMostRecent は読み取りヒットで最近使用に移動することを検証する。
func TestArticleCache_GetMovesToMostRecent(t *testing.T) {
	ctx := context.Background()
	c := mustNoErr(NewArticleCache(3))(t)

	for _, id := range []int64{1, 2, 3} {
		_ = c.Update(ctx, cachetest.SampleArticle(id, "ru"))
	}
	// 1を読み取ると2が最も古くなる
	if got, _ := c.Get(ctx, "ru", 1); got == nil {
		t.Fatal("pageid 1 should be present")
	}
	_ = c.Update(ctx, cachetest.SampleArticle(4, "ru"))

	if got, _ := c.Get(ctx, "ru", 2); got != nil {
		t.Error("pageid 2 should have been evicted")
	}
	if got, _ := c.Get(ctx, "ru", 1); got == nil {
		t.Error("pageid 1 should survive after being read")
	}
}

// TestLastViewCache_EvictsLeastRecentUser はユーザー数の上限を超えると最も古いユーザーの履歴が破棄されることを検証する。
func TestLastViewCache_EvictsLeastRecentUser(t *testing.T) {
	ctx := context.Background()
	c := mustNoErr(NewLastViewCache(5, 2))(t)

	_ = c.Update(ctx, 1, 10)
	_ = c.Update(ctx, 2, 20)
	_, _ = c.Get(ctx, 1)
	_ = c.Update(ctx, 3, 30)

	if got, _ := c.Get(ctx, 2); len(got) != 0 {
		t.Errorf("user 2 history = %v, want empty (evicted)", got)
	}
	if got, _ := c.Get(ctx, 1); len(got) != 1 || got[0] != 10 {
		t.Errorf("user 1 history = %v, want [10]", got)
	}
}

// TestLastViewCache_ConcurrentUpdates は並行更新でも上限と重複なしが保たれることを検証する。
func TestLastViewCache_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	c := mustNoErr(NewLastViewCache(10, 100))(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = c.Update(ctx, 1, int64(i%20))
			}
		}(g)
	}
	wg.Wait()

	got, _ := c.Get(ctx, 1)
	if len(got) > 10 {
		t.Errorf("history length = %d, want <= 10", len(got))
	}
	seen := make(map[int64]bool)
	for _, id := range got {
		if seen[id] {
			t.Errorf("duplicate id %d in history %v", id, got)
		}
		seen[id] = true
	}
}
