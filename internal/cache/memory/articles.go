// Package memory はプロセス内LRUによるキャッシュ実装を提供する。
// 容量は生成時に固定され、読み取りヒットで最近使用に移動し、
// 書き込みで容量を超えた場合は最も古く使用されたエントリを追い出す。
package memory

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/model"
)

// ErrInvalidCapacity は容量が0以下の場合のエラー。
var ErrInvalidCapacity = errors.New("memory cache: capacity must be positive")

func checkCapacity(name string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidCapacity, name, n)
	}
	return nil
}

type articleKey struct {
	lang   string
	pageID int64
}

// ArticleCache は記事のLRUキャッシュ。
type ArticleCache struct {
	lru *lru.Cache[articleKey, model.Article]
}

// NewArticleCache は最大maxArticles件を保持するArticleCacheを生成する。
func NewArticleCache(maxArticles int) (*ArticleCache, error) {
	if err := checkCapacity("max_articles", maxArticles); err != nil {
		return nil, err
	}
	l, err := lru.New[articleKey, model.Article](maxArticles)
	if err != nil {
		return nil, err
	}
	return &ArticleCache{lru: l}, nil
}

// Get は記事を返す。ミスの場合は (nil, nil)。
func (c *ArticleCache) Get(_ context.Context, lang string, pageID int64) (*model.Article, error) {
	a, ok := c.lru.Get(articleKey{lang: lang, pageID: pageID})
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Update は記事を追加または置き換える。
func (c *ArticleCache) Update(_ context.Context, article model.Article) error {
	c.lru.Add(articleKey{lang: article.Lang, pageID: article.PageID()}, article)
	return nil
}

var _ cache.ArticleCache = (*ArticleCache)(nil)
