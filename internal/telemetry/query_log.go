package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency class used in the stats snapshot.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its bucket.
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

// QueryEvent is one executed search.
type QueryEvent struct {
	Dataset string
	Query   string
	Matches uint64
	Latency time.Duration
}

// IsZeroResult reports whether nothing matched.
func (e QueryEvent) IsZeroResult() bool {
	return e.Matches == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// WordCount is a query word and how often it was searched.
type WordCount struct {
	Word  string `json:"word"`
	Count int64  `json:"count"`
}

// QueryLogSnapshot is an immutable view of a QueryLog.
type QueryLogSnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	DatasetCounts       map[string]int64        `json:"dataset_counts"`
	TopWords            []WordCount             `json:"top_words"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches that matched nothing.
func (s *QueryLogSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryLogConfig bounds the memory of a QueryLog.
type QueryLogConfig struct {
	TopWordsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
}

// DefaultQueryLogConfig returns the default bounds.
func DefaultQueryLogConfig() QueryLogConfig {
	return QueryLogConfig{
		TopWordsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
	}
}

// QueryLog keeps bounded in-memory statistics about recent searches.
// Safe for concurrent use. A nil *QueryLog records nothing.
type QueryLog struct {
	mu sync.Mutex

	datasets         map[string]int64
	topWords         *lru.Cache[string, int64]
	recentQueries    *lru.Cache[string, struct{}]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	totalQueries     int64
	zeroResultCount  int64
	exactRepeatCount int64
	startTime        time.Time
}

// NewQueryLog creates a query log; non-positive bounds fall back to defaults.
func NewQueryLog(cfg QueryLogConfig) *QueryLog {
	def := DefaultQueryLogConfig()
	if cfg.TopWordsCapacity <= 0 {
		cfg.TopWordsCapacity = def.TopWordsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topWords, _ := lru.New[string, int64](cfg.TopWordsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryLog{
		datasets:      make(map[string]int64),
		topWords:      topWords,
		recentQueries: recent,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
	}
}

// Record adds one search to the log.
func (l *QueryLog) Record(event QueryEvent) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalQueries++
	if event.Dataset != "" {
		l.datasets[event.Dataset]++
	}

	for _, w := range strings.Fields(strings.ToLower(event.Query)) {
		count, _ := l.topWords.Get(w)
		l.topWords.Add(w, count+1)
	}

	if event.IsZeroResult() {
		l.zeroResults.Add(event.Query)
		l.zeroResultCount++
	}

	l.latencies[LatencyToBucket(event.Latency)]++

	key := hashQuery(event.Dataset, event.Query)
	if _, seen := l.recentQueries.Get(key); seen {
		l.exactRepeatCount++
	}
	l.recentQueries.Add(key, struct{}{})
}

func hashQuery(dataset, query string) string {
	normalized := dataset + "\x00" + strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns the current statistics.
func (l *QueryLog) Snapshot() *QueryLogSnapshot {
	if l == nil {
		return &QueryLogSnapshot{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	datasets := make(map[string]int64, len(l.datasets))
	for k, v := range l.datasets {
		datasets[k] = v
	}

	words := make([]WordCount, 0, l.topWords.Len())
	for _, key := range l.topWords.Keys() {
		if count, ok := l.topWords.Peek(key); ok {
			words = append(words, WordCount{Word: key, Count: count})
		}
	}
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})

	latencies := make(map[LatencyBucket]int64, len(l.latencies))
	for k, v := range l.latencies {
		latencies[k] = v
	}

	return &QueryLogSnapshot{
		TotalQueries:        l.totalQueries,
		ZeroResultCount:     l.zeroResultCount,
		ExactRepeatCount:    l.exactRepeatCount,
		DatasetCounts:       datasets,
		TopWords:            words,
		ZeroResultQueries:   l.zeroResults.Items(),
		LatencyDistribution: latencies,
		Since:               l.startTime,
	}
}
