// Package merger selects the best k documents from an unordered candidate
// set with a bounded min-heap, so ranking always sees every candidate while
// only k are kept in memory.
package merger

import (
	"container/heap"

	"github.com/echomindr/echomindr/internal/searcher/ranker"
)

// Top returns the k best docs in rank order. Candidates may come in any
// order; the result is the same as fully sorting docs and truncating.
func Top(docs []ranker.ScoredDoc, k int) []ranker.ScoredDoc {
	if k <= 0 || len(docs) == 0 {
		return []ranker.ScoredDoc{}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range docs {
		if h.Len() < k {
			heap.Push(h, doc)
			continue
		}
		if ranker.Less(doc, (*h)[0]) {
			(*h)[0] = doc
			heap.Fix(h, 0)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// Page returns docs[offset:offset+limit] of the ranked order, computed over
// the full candidate set.
func Page(docs []ranker.ScoredDoc, offset, limit int) []ranker.ScoredDoc {
	top := Top(docs, offset+limit)
	if offset >= len(top) {
		return []ranker.ScoredDoc{}
	}
	return top[offset:]
}

// scoredDocHeap keeps the worst-ranked doc at the root.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	return ranker.Less(h[j], h[i])
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
