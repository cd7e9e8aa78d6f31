package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	// Given: a buffer of three
	buf := NewCircularBuffer[int](3)

	// When: adding five items
	for i := 1; i <= 5; i++ {
		buf.Add(i)
	}

	// Then: the newest three remain, oldest first
	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []int{3, 4, 5}, buf.Items())
}

func TestCircularBuffer_Empty(t *testing.T) {
	buf := NewCircularBuffer[string](0)

	assert.Empty(t, buf.Items())
	assert.Equal(t, 0, buf.Size())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestQueryLog_Record(t *testing.T) {
	// Given: an empty log
	l := NewQueryLog(DefaultQueryLogConfig())

	// When: recording searches over two datasets
	l.Record(QueryEvent{Dataset: "dbpedia", Query: "Berlin wall", Matches: 3, Latency: time.Millisecond})
	l.Record(QueryEvent{Dataset: "dbpedia", Query: "berlin", Matches: 0, Latency: time.Millisecond})
	l.Record(QueryEvent{Dataset: "wikidata", Query: "berlin", Matches: 1, Latency: 60 * time.Millisecond})

	// Then: counts, words and zero results are tracked
	s := l.Snapshot()
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, map[string]int64{"dbpedia": 2, "wikidata": 1}, s.DatasetCounts)
	assert.Equal(t, []string{"berlin"}, s.ZeroResultQueries)
	require.NotEmpty(t, s.TopWords)
	assert.Equal(t, WordCount{Word: "berlin", Count: 3}, s.TopWords[0])
	assert.Equal(t, int64(2), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP100])
	assert.InDelta(t, 33.33, s.ZeroResultPercentage(), 0.01)
}

func TestQueryLog_ExactRepeatsArePerDataset(t *testing.T) {
	l := NewQueryLog(DefaultQueryLogConfig())

	l.Record(QueryEvent{Dataset: "a", Query: "Paris"})
	l.Record(QueryEvent{Dataset: "a", Query: " paris "})
	l.Record(QueryEvent{Dataset: "b", Query: "paris"})

	assert.Equal(t, int64(1), l.Snapshot().ExactRepeatCount)
}

func TestQueryLog_TopWordsEviction(t *testing.T) {
	l := NewQueryLog(QueryLogConfig{TopWordsCapacity: 2})

	l.Record(QueryEvent{Query: "alpha"})
	l.Record(QueryEvent{Query: "beta"})
	l.Record(QueryEvent{Query: "gamma"})

	words := l.Snapshot().TopWords
	require.Len(t, words, 2)
	assert.Equal(t, "beta", words[0].Word)
	assert.Equal(t, "gamma", words[1].Word)
}

func TestQueryLog_Concurrent(t *testing.T) {
	l := NewQueryLog(DefaultQueryLogConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Record(QueryEvent{Query: fmt.Sprintf("q%d", i%5), Matches: uint64(i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(20), l.Snapshot().TotalQueries)
}

func TestQueryLog_Nil(t *testing.T) {
	var l *QueryLog

	l.Record(QueryEvent{Query: "x"})
	assert.Equal(t, int64(0), l.Snapshot().TotalQueries)
}
