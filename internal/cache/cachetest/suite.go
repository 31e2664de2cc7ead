// Package cachetest はキャッシュ実装の共通適合テストを提供する。
// memoryとrediscacheの両方の実装に対して同じテストを実行し、
// ポートの振る舞い（ヒット/ミス、置き換え、履歴の順序と上限）が同一であることを検証する。
package cachetest

import (
	"context"
	"reflect"
	"testing"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/model"
)

// Backend は適合テスト対象のキャッシュを生成する関数群。
// 各関数はテストごとに空のキャッシュを返す必要がある。
type Backend struct {
	Articles func(t *testing.T) cache.ArticleCache
	LastView func(t *testing.T, maxPerUser int) cache.LastViewCache
	Settings func(t *testing.T) cache.SettingsCache
	UserIDs  func(t *testing.T) cache.UserIDCache
}

// Run は全適合テストを実行する。
func Run(t *testing.T, b Backend) {
	t.Run("ArticleCache", func(t *testing.T) { runArticleSuite(t, b.Articles) })
	t.Run("LastViewCache", func(t *testing.T) { runLastViewSuite(t, b.LastView) })
	t.Run("SettingsCache", func(t *testing.T) { runSettingsSuite(t, b.Settings) })
	t.Run("UserIDCache", func(t *testing.T) { runUserIDSuite(t, b.UserIDs) })
}

// SampleArticle はテスト用の記事を返す。
func SampleArticle(pageID int64, lang string) model.Article {
	return model.Article{
		Meta: model.ArticleMeta{
			PageID:       pageID,
			Title:        "Статья",
			URL:          "https://" + lang + ".wikipedia.org/wiki/Test",
			ThumbnailURL: "https://upload.wikimedia.org/thumb.png",
		},
		Extract: "Первая строка.\nSecond line with <html> & \"quotes\".",
		Lang:    lang,
	}
}

func runArticleSuite(t *testing.T, newCache func(t *testing.T) cache.ArticleCache) {
	ctx := context.Background()

	t.Run("miss returns nil", func(t *testing.T) {
		c := newCache(t)
		got, err := c.Get(ctx, "ru", 1)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != nil {
			t.Errorf("Get() = %+v, want nil", got)
		}
	})

	t.Run("hit returns stored value", func(t *testing.T) {
		c := newCache(t)
		want := SampleArticle(10, "ru")
		if err := c.Update(ctx, want); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, err := c.Get(ctx, "ru", 10)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got == nil || !reflect.DeepEqual(*got, want) {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
	})

	t.Run("update replaces value", func(t *testing.T) {
		c := newCache(t)
		first := SampleArticle(10, "ru")
		second := first
		second.Extract = "replaced"
		_ = c.Update(ctx, first)
		_ = c.Update(ctx, second)

		got, _ := c.Get(ctx, "ru", 10)
		if got == nil || got.Extract != "replaced" {
			t.Errorf("Get() = %+v, want replaced extract", got)
		}
	})

	t.Run("lang is part of the key", func(t *testing.T) {
		c := newCache(t)
		_ = c.Update(ctx, SampleArticle(10, "ru"))

		got, _ := c.Get(ctx, "en", 10)
		if got != nil {
			t.Errorf("Get(en) = %+v, want nil", got)
		}
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		c := newCache(t)
		_ = c.Update(ctx, SampleArticle(10, "ru"))

		got, _ := c.Get(ctx, "ru", 10)
		got.Meta.Title = "mutated"

		again, _ := c.Get(ctx, "ru", 10)
		if again.Meta.Title == "mutated" {
			t.Error("cached value was mutated through the returned pointer")
		}
	})
}

func runLastViewSuite(t *testing.T, newCache func(t *testing.T, maxPerUser int) cache.LastViewCache) {
	ctx := context.Background()

	t.Run("unknown user has empty history", func(t *testing.T) {
		c := newCache(t, 5)
		got, err := c.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get() = %v, want empty", got)
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		c := newCache(t, 5)
		for _, id := range []int64{1, 2, 3} {
			if err := c.Update(ctx, 7, id); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		}
		assertHistory(t, c, 7, []int64{3, 2, 1})
	})

	t.Run("re-adding moves to front without duplicates", func(t *testing.T) {
		c := newCache(t, 5)
		for _, id := range []int64{1, 2, 3, 2} {
			_ = c.Update(ctx, 7, id)
		}
		assertHistory(t, c, 7, []int64{2, 3, 1})
	})

	t.Run("capped at max per user", func(t *testing.T) {
		c := newCache(t, 3)
		for _, id := range []int64{1, 2, 3, 4, 5} {
			_ = c.Update(ctx, 7, id)
		}
		assertHistory(t, c, 7, []int64{5, 4, 3})
	})

	t.Run("users are independent", func(t *testing.T) {
		c := newCache(t, 3)
		_ = c.Update(ctx, 1, 100)
		_ = c.Update(ctx, 2, 200)
		assertHistory(t, c, 1, []int64{100})
		assertHistory(t, c, 2, []int64{200})
	})
}

func assertHistory(t *testing.T, c cache.LastViewCache, userID int64, want []int64) {
	t.Helper()
	got, err := c.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", userID, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get(%d) = %v, want %v", userID, got, want)
	}
}

func runSettingsSuite(t *testing.T, newCache func(t *testing.T) cache.SettingsCache) {
	ctx := context.Background()

	t.Run("miss returns nil", func(t *testing.T) {
		c := newCache(t)
		got, err := c.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != nil {
			t.Errorf("Get() = %+v, want nil", got)
		}
	})

	t.Run("hit and replace", func(t *testing.T) {
		c := newCache(t)
		s := model.DefaultUserSettings()
		if err := c.Update(ctx, 1, s); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, _ := c.Get(ctx, 1)
		if got == nil || *got != s {
			t.Errorf("Get() = %+v, want %+v", got, s)
		}

		s.PageLen = 2048
		s.SendImage = false
		s.WikiLang = "en"
		_ = c.Update(ctx, 1, s)
		got, _ = c.Get(ctx, 1)
		if got == nil || *got != s {
			t.Errorf("Get() after replace = %+v, want %+v", got, s)
		}

		other, _ := c.Get(ctx, 2)
		if other != nil {
			t.Errorf("Get(2) = %+v, want nil", other)
		}
	})
}

func runUserIDSuite(t *testing.T, newCache func(t *testing.T) cache.UserIDCache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c := newCache(t)
		id, ok, err := c.Get(ctx, model.ProviderTelegram, "42")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok || id != 0 {
			t.Errorf("Get() = (%d, %v), want (0, false)", id, ok)
		}
	})

	t.Run("hit and provider isolation", func(t *testing.T) {
		c := newCache(t)
		if err := c.Update(ctx, 1001, model.ProviderTelegram, "42"); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		id, ok, _ := c.Get(ctx, model.ProviderTelegram, "42")
		if !ok || id != 1001 {
			t.Errorf("Get() = (%d, %v), want (1001, true)", id, ok)
		}

		_, ok, _ = c.Get(ctx, "discord", "42")
		if ok {
			t.Error("other provider should miss")
		}

		_ = c.Update(ctx, 1002, model.ProviderTelegram, "42")
		id, _, _ = c.Get(ctx, model.ProviderTelegram, "42")
		if id != 1002 {
			t.Errorf("Get() after replace = %d, want 1002", id)
		}
	})
}
