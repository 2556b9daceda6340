// Package telemetry records local query-pattern metrics for tuning search
// behavior. Nothing leaves the machine.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// QueryType classifies how a query was answered.
type QueryType string

const (
	QueryTypeLexical  QueryType = "lexical"
	QueryTypeSemantic QueryType = "semantic"
	QueryTypeMixed    QueryType = "mixed"
)

// ClassifyQuery derives the query type from the effective retrieval weights.
func ClassifyQuery(semanticWeight, lexicalWeight float64) QueryType {
	switch {
	case semanticWeight > 0 && lexicalWeight > 0:
		return QueryTypeMixed
	case lexicalWeight > 0:
		return QueryTypeLexical
	default:
		return QueryTypeSemantic
	}
}

// LatencyBucket is a histogram bucket label.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket maps a duration onto its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one recorded search.
type QueryEvent struct {
	Query       string
	QueryType   QueryType
	Profile     string
	ResultCount int
	Latency     time.Duration
	TimedOut    bool
	Timestamp   time.Time
}

// IsZeroResult reports whether the query found nothing.
func (e QueryEvent) IsZeroResult() bool { return e.ResultCount == 0 }

// ExtractTerms pulls lowercased terms of length >= 3 from a query.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount pairs a term with its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collector state.
type Snapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	TimedOutCount       int64                   `json:"timed_out_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage is the share of queries that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// zeroResultCapacity bounds the remembered zero-result queries.
const zeroResultCapacity = 100

// Collector aggregates query events in memory. Safe for concurrent use.
type Collector struct {
	mu          sync.Mutex
	typeCounts  map[QueryType]int64
	termCounts  map[string]int64
	latency     map[LatencyBucket]int64
	zeroResults *ring[string]
	total       int64
	zeroTotal   int64
	timedOut    int64
	since       time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		typeCounts:  make(map[QueryType]int64),
		termCounts:  make(map[string]int64),
		latency:     make(map[LatencyBucket]int64),
		zeroResults: newRing[string](zeroResultCapacity),
		since:       time.Now(),
	}
}

// Record folds one event into the aggregates.
func (c *Collector) Record(e QueryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	c.typeCounts[e.QueryType]++
	c.latency[LatencyToBucket(e.Latency)]++
	if e.TimedOut {
		c.timedOut++
	}
	if e.IsZeroResult() {
		c.zeroTotal++
		c.zeroResults.add(e.Query)
	}
	for _, term := range ExtractTerms(e.Query) {
		c.termCounts[term]++
	}
}

// Snapshot copies the current aggregates.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Snapshot{
		QueryTypeCounts:     make(map[QueryType]int64, len(c.typeCounts)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(c.latency)),
		ZeroResultQueries:   c.zeroResults.items(),
		TotalQueries:        c.total,
		ZeroResultCount:     c.zeroTotal,
		TimedOutCount:       c.timedOut,
		Since:               c.since,
	}
	for k, v := range c.typeCounts {
		s.QueryTypeCounts[k] = v
	}
	for k, v := range c.latency {
		s.LatencyDistribution[k] = v
	}

	s.TopTerms = make([]TermCount, 0, len(c.termCounts))
	for term, count := range c.termCounts {
		s.TopTerms = append(s.TopTerms, TermCount{Term: term, Count: count})
	}
	sort.Slice(s.TopTerms, func(a, b int) bool {
		ta, tb := s.TopTerms[a], s.TopTerms[b]
		if ta.Count != tb.Count {
			return ta.Count > tb.Count
		}
		return ta.Term < tb.Term
	})
	if len(s.TopTerms) > 20 {
		s.TopTerms = s.TopTerms[:20]
	}
	return s
}

// Drain returns the current snapshot and resets the aggregates; used by the
// periodic flush to persistence.
func (c *Collector) Drain() *Snapshot {
	s := c.Snapshot()
	c.mu.Lock()
	c.typeCounts = make(map[QueryType]int64)
	c.termCounts = make(map[string]int64)
	c.latency = make(map[LatencyBucket]int64)
	c.zeroResults = newRing[string](zeroResultCapacity)
	c.total, c.zeroTotal, c.timedOut = 0, 0, 0
	c.since = time.Now()
	c.mu.Unlock()
	return s
}

// MergeTerms sums counts across two term lists and returns the top limit,
// ordered by count descending then term ascending.
func MergeTerms(a, b []TermCount, limit int) []TermCount {
	merged := make(map[string]int64, len(a)+len(b))
	for _, tc := range a {
		merged[tc.Term] += tc.Count
	}
	for _, tc := range b {
		merged[tc.Term] += tc.Count
	}

	out := make([]TermCount, 0, len(merged))
	for term, count := range merged {
		out = append(out, TermCount{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ring is a fixed-capacity FIFO buffer.
type ring[T any] struct {
	buf  []T
	head int
	size int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) add(item T) {
	r.buf[r.head] = item
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// items returns buffer contents oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, r.size)
	if r.size < len(r.buf) {
		copy(out, r.buf[:r.size])
		return out
	}
	copy(out, r.buf[r.head:])
	copy(out[len(r.buf)-r.head:], r.buf[:r.head])
	return out
}
