package batch

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// BatchStats describes one delivered batch.
type BatchStats struct {
	Batch      int
	Rows       int
	ChildRows  int
	OrphanRows int
	Queries    int
	Duration   time.Duration
}

// ProgressCallback is an optional callback invoked after each batch is delivered.
type ProgressCallback func(progress ProgressSnapshot)

// BatchHook is an optional callback invoked with the stats of each delivered batch.
type BatchHook func(stats BatchStats)

// Progress tracks a processing run. It is safe for concurrent use.
type Progress struct {
	// TotalRows is the number of primary rows assigned to batches.
	TotalRows int

	// DeliveredRows is the number of primary rows handed to the consumer so far.
	DeliveredRows int

	// TotalBatches is the number of batches in the resolved range.
	TotalBatches int

	// DeliveredBatches is the number of batches delivered so far.
	DeliveredBatches int

	// BatchSize is the configured batch size.
	BatchSize int

	// ChildRows counts child rows delivered across every level.
	ChildRows int

	// OrphanRows counts child rows dropped because their parent was not in scope.
	OrphanRows int

	// Queries counts executed queries, including the key query.
	Queries int

	// StartTime is when processing started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	mu sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(totalRows, totalBatches, batchSize int) *Progress {
	now := time.Now()
	return &Progress{
		TotalRows:      totalRows,
		TotalBatches:   totalBatches,
		BatchSize:      batchSize,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddQueries records queries issued outside a batch, such as the key query.
func (p *Progress) AddQueries(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries += n
}

// AddBatch records a delivered batch.
func (p *Progress) AddBatch(stats BatchStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DeliveredRows += stats.Rows
	p.DeliveredBatches++
	p.ChildRows += stats.ChildRows
	p.OrphanRows += stats.OrphanRows
	p.Queries += stats.Queries
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percentCompleteUnsafe()
}

// IsComplete returns true once every batch has been delivered.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.DeliveredBatches >= p.TotalBatches
}

// EstimatedTimeRemaining estimates the remaining time from the average batch duration.
// Returns 0 if no batch has been delivered yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.DeliveredBatches == 0 {
		return 0
	}
	elapsed := time.Since(p.StartTime)
	perBatch := elapsed / time.Duration(p.DeliveredBatches)
	return perBatch * time.Duration(p.TotalBatches-p.DeliveredBatches)
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	elapsed := time.Since(p.StartTime)
	var rowsPerSecond float64
	if s := elapsed.Seconds(); s > 0 {
		rowsPerSecond = float64(p.DeliveredRows) / s
	}

	return ProgressSnapshot{
		TotalRows:        p.TotalRows,
		DeliveredRows:    p.DeliveredRows,
		TotalBatches:     p.TotalBatches,
		DeliveredBatches: p.DeliveredBatches,
		BatchSize:        p.BatchSize,
		ChildRows:        p.ChildRows,
		OrphanRows:       p.OrphanRows,
		Queries:          p.Queries,
		StartTime:        p.StartTime,
		LastUpdateTime:   p.LastUpdateTime,
		PercentComplete:  p.percentCompleteUnsafe(),
		ElapsedTime:      elapsed,
		RowsPerSecond:    rowsPerSecond,
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalRows        int
	DeliveredRows    int
	TotalBatches     int
	DeliveredBatches int
	BatchSize        int
	ChildRows        int
	OrphanRows       int
	Queries          int
	StartTime        time.Time
	LastUpdateTime   time.Time
	PercentComplete  float64
	ElapsedTime      time.Duration
	RowsPerSecond    float64
}

// percentCompleteUnsafe calculates percent complete without locking.
// Should only be called when already holding the lock.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalRows == 0 {
		return percentMultiplier
	}
	return (float64(p.DeliveredRows) / float64(p.TotalRows)) * percentMultiplier
}
