package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tgwiki/internal/cache"
	"github.com/hitoshi/tgwiki/internal/model"
)

// ArticleCache はRedisによる記事キャッシュ。読み取り・書き込みの両方でTTLを更新する。
type ArticleCache struct {
	rdb  redis.Cmdable
	keys keyspace
	ttl  time.Duration
}

// NewArticleCache はArticleCacheを生成する。
func NewArticleCache(rdb redis.Cmdable, prefix string, ttl time.Duration) (*ArticleCache, error) {
	if err := checkTTL("article_ttl", ttl); err != nil {
		return nil, err
	}
	return &ArticleCache{rdb: rdb, keys: newKeyspace(prefix), ttl: ttl}, nil
}

// Get は記事を返す。ミス・期限切れの場合は (nil, nil)。
func (c *ArticleCache) Get(ctx context.Context, lang string, pageID int64) (*model.Article, error) {
	raw, err := c.rdb.GetEx(ctx, c.keys.article(lang, pageID), c.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事キャッシュの取得に失敗しました: %w", err)
	}

	a, err := DecodeArticle(raw)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Update は記事を保存し、TTLを設定する。
func (c *ArticleCache) Update(ctx context.Context, article model.Article) error {
	raw, err := EncodeArticle(article)
	if err != nil {
		return fmt.Errorf("記事のエンコードに失敗しました: %w", err)
	}
	if err := c.rdb.Set(ctx, c.keys.article(article.Lang, article.PageID()), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("記事キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

var _ cache.ArticleCache = (*ArticleCache)(nil)
