package search

import "strings"

// titleSet は挿入順を保持し重複を除外するタイトルの集合。上限に達すると以降の追加を無視する。
type titleSet struct {
	limit int
	order []string
	seen  map[string]struct{}
}

func newTitleSet(limit int) *titleSet {
	return &titleSet{
		limit: limit,
		order: make([]string, 0, limit),
		seen:  make(map[string]struct{}, limit),
	}
}

func (s *titleSet) addAll(titles []string) {
	for _, t := range titles {
		if len(s.order) >= s.limit {
			return
		}
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := s.seen[t]; ok {
			continue
		}
		s.seen[t] = struct{}{}
		s.order = append(s.order, t)
	}
}

func (s *titleSet) len() int {
	return len(s.order)
}

func (s *titleSet) items() []string {
	return s.order
}
