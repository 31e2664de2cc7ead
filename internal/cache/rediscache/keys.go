// Package rediscache はRedisによるTTL付きキャッシュ実装を提供する。
// すべての書き込みで有効期限を設定・更新し、期限切れのキーはミスとして扱う。
package rediscache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPrefix はキー名前空間のデフォルトプレフィックス。
const DefaultPrefix = "tg_wiki"

// ErrInvalidTTL はTTLが0以下の場合のエラー。
var ErrInvalidTTL = errors.New("redis cache: ttl must be positive")

// ErrInvalidCapacity は履歴の上限が0以下の場合のエラー。
var ErrInvalidCapacity = errors.New("redis cache: capacity must be positive")

// keyspace はキーの組み立てを行う。
// 形式は {prefix}:{entity}:{disambiguators}。
type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) article(lang string, pageID int64) string {
	return fmt.Sprintf("%s:article:%s:%d", k.prefix, lang, pageID)
}

func (k keyspace) recent(userID int64) string {
	return fmt.Sprintf("%s:user:%d:recent", k.prefix, userID)
}

func (k keyspace) settings(userID int64) string {
	return fmt.Sprintf("%s:settings:%d", k.prefix, userID)
}

func (k keyspace) userID(provider, externalID string) string {
	return fmt.Sprintf("%s:settings:%s:%s", k.prefix, provider, externalID)
}

func checkTTL(name string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: %s=%s", ErrInvalidTTL, name, ttl)
	}
	return nil
}
