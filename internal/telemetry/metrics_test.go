package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQuery(t *testing.T) {
	assert.Equal(t, QueryTypeMixed, ClassifyQuery(0.7, 0.3))
	assert.Equal(t, QueryTypeSemantic, ClassifyQuery(1.0, 0))
	assert.Equal(t, QueryTypeLexical, ClassifyQuery(0, 1.0))
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{25 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{300 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"semantic", "search"}, ExtractTerms("Semantic Search"))
	assert.Nil(t, ExtractTerms("a b"))
	assert.Nil(t, ExtractTerms("   "))
}

func TestCollectorRecordAndSnapshot(t *testing.T) {
	c := NewCollector()
	c.Record(QueryEvent{Query: "semantic search", QueryType: QueryTypeMixed,
		ResultCount: 3, Latency: 5 * time.Millisecond})
	c.Record(QueryEvent{Query: "missing thing", QueryType: QueryTypeMixed,
		ResultCount: 0, Latency: 60 * time.Millisecond})
	c.Record(QueryEvent{Query: "semantic drift", QueryType: QueryTypeSemantic,
		ResultCount: 1, Latency: 700 * time.Millisecond, TimedOut: true})

	s := c.Snapshot()
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.TimedOutCount)
	assert.Equal(t, int64(2), s.QueryTypeCounts[QueryTypeMixed])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP10])
	assert.Equal(t, []string{"missing thing"}, s.ZeroResultQueries)
	assert.InDelta(t, 100.0/3, s.ZeroResultPercentage(), 0.01)

	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, "semantic", s.TopTerms[0].Term)
	assert.Equal(t, int64(2), s.TopTerms[0].Count)
}

func TestCollectorDrainResets(t *testing.T) {
	c := NewCollector()
	c.Record(QueryEvent{Query: "anything", QueryType: QueryTypeMixed, ResultCount: 1})

	first := c.Drain()
	assert.Equal(t, int64(1), first.TotalQueries)

	second := c.Snapshot()
	assert.Zero(t, second.TotalQueries)
	assert.Empty(t, second.TopTerms)
}

func TestRingEviction(t *testing.T) {
	r := newRing[string](3)
	for i := 0; i < 5; i++ {
		r.add(fmt.Sprintf("q%d", i))
	}
	assert.Equal(t, []string{"q2", "q3", "q4"}, r.items())
}

func TestMergeTerms(t *testing.T) {
	a := []TermCount{{Term: "search", Count: 3}, {Term: "notes", Count: 1}}
	b := []TermCount{{Term: "search", Count: 2}, {Term: "garden", Count: 1}}

	merged := MergeTerms(a, b, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, TermCount{Term: "search", Count: 5}, merged[0])
	assert.Equal(t, TermCount{Term: "garden", Count: 1}, merged[1]) // tie with notes, term ascending
}
