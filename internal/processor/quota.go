package processor

import "sync/atomic"

// quota hands out row budget to workers when a run has a row limit.
type quota struct {
	unlimited bool
	left      atomic.Int64
}

func newQuota(limit int) *quota {
	q := &quota{unlimited: limit <= 0}
	if !q.unlimited {
		q.left.Store(int64(limit))
	}
	return q
}

// take claims up to n rows and returns how many were granted.
func (q *quota) take(n int) int {
	if q.unlimited {
		return n
	}
	for {
		cur := q.left.Load()
		if cur <= 0 {
			return 0
		}
		k := min(int64(n), cur)
		if q.left.CompareAndSwap(cur, cur-k) {
			return int(k)
		}
	}
}

// refund returns rows a worker claimed but did not read.
func (q *quota) refund(n int) {
	if q.unlimited || n <= 0 {
		return
	}
	q.left.Add(int64(n))
}
