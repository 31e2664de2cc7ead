package reco

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/tgwiki/internal/cache/memory"
	"github.com/hitoshi/tgwiki/internal/fetch"
	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// mockSource はRandomArticleSourceのモック。ids を順に返し、0はnil記事として扱う。
type mockSource struct {
	ids   []int64
	err   error
	calls int
}

func (m *mockSource) RandomArticle(ctx context.Context, opts wiki.FetchOptions) (*model.Article, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	id := m.ids[len(m.ids)-1]
	if m.calls <= len(m.ids) {
		id = m.ids[m.calls-1]
	}
	if id == 0 {
		return nil, nil
	}
	return &model.Article{
		Meta: model.ArticleMeta{PageID: id, Title: "T", URL: "https://x"},
		Lang: opts.Lang,
	}, nil
}

// failingLastView は常にエラーを返すLastViewCache。
type failingLastView struct{}

func (failingLastView) Get(context.Context, int64) ([]int64, error) {
	return nil, errors.New("cache down")
}

func (failingLastView) Update(context.Context, int64, int64) error {
	return errors.New("cache down")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCaches(t *testing.T, perUser int) (*memory.ArticleCache, *memory.LastViewCache) {
	t.Helper()
	articles, err := memory.NewArticleCache(100)
	if err != nil {
		t.Fatal(err)
	}
	lastView, err := memory.NewLastViewCache(perUser, 100)
	if err != nil {
		t.Fatal(err)
	}
	return articles, lastView
}

// TestGetNextArticle_SkipsHistory は履歴に含まれる記事をスキップすることを検証する。
func TestGetNextArticle_SkipsHistory(t *testing.T) {
	ctx := context.Background()
	articles, lastView := newCaches(t, 20)
	for _, id := range []int64{1, 2, 3} {
		_ = lastView.Update(ctx, 7, id)
	}

	src := &mockSource{ids: []int64{1, 2, 4}}
	svc := NewService(src, articles, lastView, testLogger())

	article, err := svc.GetNextArticle(ctx, 7, wiki.DefaultFetchOptions())
	if err != nil {
		t.Fatalf("GetNextArticle() error = %v", err)
	}
	if article.PageID() != 4 {
		t.Errorf("PageID = %d, want 4", article.PageID())
	}
	if src.calls != 3 {
		t.Errorf("calls = %d, want 3", src.calls)
	}

	history, _ := lastView.Get(ctx, 7)
	if len(history) == 0 || history[0] != 4 {
		t.Errorf("history = %v, want 4 at the front", history)
	}

	cached, _ := articles.Get(ctx, "ru", 4)
	if cached == nil {
		t.Error("article should be stored in the article cache")
	}
}

// TestGetNextArticle_SkipsNilArticles は記事が見つからない応答を読み飛ばすことを検証する。
func TestGetNextArticle_SkipsNilArticles(t *testing.T) {
	articles, lastView := newCaches(t, 20)
	src := &mockSource{ids: []int64{0, 0, 9}}
	svc := NewService(src, articles, lastView, testLogger())

	article, err := svc.GetNextArticle(context.Background(), 1, wiki.DefaultFetchOptions())
	if err != nil {
		t.Fatalf("GetNextArticle() error = %v", err)
	}
	if article.PageID() != 9 {
		t.Errorf("PageID = %d, want 9", article.PageID())
	}
}

// TestGetNextArticle_NeverReturnsHistoryAndRespectsCap は連続呼び出しで履歴内の記事を返さず、
// 履歴が上限を超えないことを検証する。
func TestGetNextArticle_NeverReturnsHistoryAndRespectsCap(t *testing.T) {
	ctx := context.Background()
	const perUser = 3
	articles, lastView := newCaches(t, perUser)

	// 小さな記事プールから重複を多く含む乱数列
	ids := []int64{1, 1, 2, 1, 2, 3, 3, 2, 1, 4, 4, 1, 5, 2, 3, 4, 5, 1, 6, 6, 2, 7, 1, 8}
	src := &mockSource{ids: ids}
	svc := NewService(src, articles, lastView, testLogger())

	for i := 0; i < 6; i++ {
		before, _ := lastView.Get(ctx, 1)

		article, err := svc.GetNextArticle(ctx, 1, wiki.DefaultFetchOptions())
		if err != nil {
			t.Fatalf("call %d: GetNextArticle() error = %v", i, err)
		}
		for _, id := range before {
			if id == article.PageID() {
				t.Fatalf("call %d: returned pageid %d from history %v", i, id, before)
			}
		}

		after, _ := lastView.Get(ctx, 1)
		if after[0] != article.PageID() {
			t.Errorf("call %d: history head = %d, want %d", i, after[0], article.PageID())
		}
		if len(after) > perUser {
			t.Errorf("call %d: history length = %d, want <= %d", i, len(after), perUser)
		}
	}
}

// TestGetNextArticle_PropagatesSourceError は取得元のエラーがそのまま伝播し、キャッシュが更新されないことを検証する。
func TestGetNextArticle_PropagatesSourceError(t *testing.T) {
	ctx := context.Background()
	articles, lastView := newCaches(t, 20)
	srcErr := &fetch.FetchError{Kind: fetch.KindTransientStatus, StatusCode: 503, Transient: true}
	src := &mockSource{err: srcErr}
	svc := NewService(src, articles, lastView, testLogger())

	_, err := svc.GetNextArticle(ctx, 1, wiki.DefaultFetchOptions())
	if !errors.Is(err, srcErr) {
		t.Errorf("err = %v, want source error", err)
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1 (services never retry)", src.calls)
	}
	if history, _ := lastView.Get(ctx, 1); len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}

// TestGetNextArticle_GivesUpAfterMaxAttempts は試行回数の上限でErrNoFreshArticleを返すことを検証する。
func TestGetNextArticle_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	articles, lastView := newCaches(t, 20)
	_ = lastView.Update(ctx, 1, 5)

	src := &mockSource{ids: []int64{5}}
	svc := NewService(src, articles, lastView, testLogger(), WithMaxAttempts(4))

	_, err := svc.GetNextArticle(ctx, 1, wiki.DefaultFetchOptions())
	if !errors.Is(err, ErrNoFreshArticle) {
		t.Errorf("err = %v, want ErrNoFreshArticle", err)
	}
	if src.calls != 4 {
		t.Errorf("calls = %d, want 4", src.calls)
	}
}

// TestGetNextArticle_HistoryErrorTreatedAsEmpty は履歴キャッシュの障害が呼び出し元に影響しないことを検証する。
func TestGetNextArticle_HistoryErrorTreatedAsEmpty(t *testing.T) {
	articles, _ := newCaches(t, 20)
	src := &mockSource{ids: []int64{11}}
	svc := NewService(src, articles, failingLastView{}, testLogger())

	article, err := svc.GetNextArticle(context.Background(), 1, wiki.DefaultFetchOptions())
	if err != nil {
		t.Fatalf("GetNextArticle() error = %v", err)
	}
	if article.PageID() != 11 {
		t.Errorf("PageID = %d, want 11", article.PageID())
	}
}

// TestGetNextArticle_CanceledContext はキャンセル済みのコンテキストで取得元を呼ばないことを検証する。
func TestGetNextArticle_CanceledContext(t *testing.T) {
	articles, lastView := newCaches(t, 20)
	src := &mockSource{ids: []int64{1}}
	svc := NewService(src, articles, lastView, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetNextArticle(ctx, 1, wiki.DefaultFetchOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if src.calls != 0 {
		t.Errorf("calls = %d, want 0", src.calls)
	}
}
