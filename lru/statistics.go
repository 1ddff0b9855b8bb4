package lru

// Statistics contains cache performance metrics.
type Statistics struct {
	hits      int64
	misses    int64
	evictions int64
	usage     int
}

// TotalHits returns the number of Get calls that found their key.
func (s Statistics) TotalHits() int64 {
	return s.hits
}

// TotalMisses returns the number of Get calls that missed.
func (s Statistics) TotalMisses() int64 {
	return s.misses
}

// Evictions returns the number of entries evicted for capacity.
func (s Statistics) Evictions() int64 {
	return s.evictions
}

// UsageCount returns the number of entries at snapshot time.
func (s Statistics) UsageCount() int {
	return s.usage
}
