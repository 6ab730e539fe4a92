package aggregate

import (
	"sort"
	"sync"

	"hbcai/internal/model"
)

// SimpleBuffer 在极简模式下收集单页结果，避免落库。
type SimpleBuffer struct {
	mu      sync.Mutex
	results map[string]model.PageResult // key: origin
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{results: make(map[string]model.PageResult)}
}

// Add 记录（或覆盖）来源页的结果。
func (b *SimpleBuffer) Add(r model.PageResult) {
	if r.Origin == "" {
		return
	}
	b.mu.Lock()
	b.results[r.Origin] = r
	b.mu.Unlock()
}

// Snapshot 返回按来源页排序的副本。
func (b *SimpleBuffer) Snapshot() []model.PageResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.PageResult, 0, len(b.results))
	for _, v := range b.results {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}
