package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of primary rows per batch.
	DefaultBatchSize = 100

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1
)

// State is a step of the processor lifecycle.
type State int

// Processor states, in the order a run moves through them.
const (
	StateIdle State = iota
	StatePartitioned
	StateResolved
	StateProcessing
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePartitioned:
		return "partitioned"
	case StateResolved:
		return "resolved"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Processor.
type Option func(*Processor)

// WithPrefetch lets up to n batches be loaded ahead of the one being delivered.
// Delivery order is unchanged. Zero disables prefetching.
func WithPrefetch(n int) Option {
	return func(p *Processor) {
		p.prefetch = n
	}
}

// WithProgressCallback sets a callback invoked after every delivered batch.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(p *Processor) {
		p.onProgress = callback
	}
}

// WithBatchHook sets a callback invoked with the stats of every delivered batch.
func WithBatchHook(hook BatchHook) Option {
	return func(p *Processor) {
		p.onBatch = hook
	}
}

// WithPartitioner replaces the in-memory SortPartitioner.
func WithPartitioner(partitioner Partitioner) Option {
	return func(p *Processor) {
		p.partitioner = partitioner
	}
}

// Processor runs the batch pattern: partition the primary key set, resolve
// the batch range, then load, join and deliver one batch at a time.
// A Processor runs once; create a new one for another pass.
type Processor struct {
	exec        QueryExecutor
	primary     PrimarySpec
	children    []ChildSpec
	batchSize   int
	prefetch    int
	partitioner Partitioner
	onProgress  ProgressCallback
	onBatch     BatchHook

	// mu protects the run state below.
	mu         sync.Mutex
	state      State
	running    bool
	batch      int
	assignment *Assignment
	rng        Range
	resolved   bool
	resident   *ChildIndex
	progress   *Progress
}

// NewProcessor creates a processor. Configuration errors are reported here,
// before any query runs.
func NewProcessor(
	exec QueryExecutor,
	primary PrimarySpec,
	children []ChildSpec,
	batchSize int,
	opts ...Option,
) (*Processor, error) {
	if exec == nil {
		return nil, invalidConfig("query executor is required")
	}
	if batchSize < MinBatchSize {
		return nil, invalidConfig("batch size must be >= %d, got %d", MinBatchSize, batchSize)
	}
	if err := primary.validate(); err != nil {
		return nil, err
	}
	validated, err := validateChildren(primary.Name, children)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		exec:        exec,
		primary:     primary,
		children:    validated,
		batchSize:   batchSize,
		partitioner: SortPartitioner{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.prefetch < 0 {
		return nil, invalidConfig("prefetch must be >= 0, got %d", p.prefetch)
	}
	if p.partitioner == nil {
		p.partitioner = SortPartitioner{}
	}
	return p, nil
}

// ProcessInBatches is the single entry point of the package: it builds a
// Processor and runs it once.
func ProcessInBatches(
	ctx context.Context,
	exec QueryExecutor,
	primary PrimarySpec,
	children []ChildSpec,
	batchSize int,
	consumer Consumer,
	opts ...Option,
) error {
	p, err := NewProcessor(exec, primary, children, batchSize, opts...)
	if err != nil {
		return err
	}
	return p.Run(ctx, consumer)
}

// State returns the current lifecycle state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Batch returns the batch being loaded or delivered, 0 before the first.
func (p *Processor) Batch() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batch
}

// Assignment returns the batch assignment, nil before partitioning.
func (p *Processor) Assignment() *Assignment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assignment
}

// Range returns the resolved batch range. ok is false before resolution and
// for runs without primary rows.
func (p *Processor) Range() (Range, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng, p.resolved
}

// Progress returns a snapshot of the run's progress.
func (p *Processor) Progress() ProgressSnapshot {
	p.mu.Lock()
	progress := p.progress
	p.mu.Unlock()

	if progress == nil {
		return ProgressSnapshot{}
	}
	return progress.Snapshot()
}

// Run processes every batch in increasing order and hands each primary row,
// paired with its children, to consumer.
//
// Cancellation of ctx is observed between batches: a batch whose delivery has
// started is delivered completely, with a context that is not canceled.
// Any query or consumer error aborts the run. Per-batch resources are
// released on every exit path.
func (p *Processor) Run(ctx context.Context, consumer Consumer) error {
	if consumer == nil {
		return invalidConfig("consumer is required")
	}
	if err := p.begin(); err != nil {
		return err
	}
	defer p.finish()

	log := zerolog.Ctx(ctx).With().
		Str("component", "batch").
		Str("run_id", uuid.NewString()).
		Str("primary", p.primary.Name).
		Logger()
	ctx = log.WithContext(ctx)

	err := p.run(ctx, consumer)
	if err != nil {
		log.Warn().Err(err).Int("batch", p.Batch()).Msg("batch processing aborted")
		return err
	}

	snap := p.Progress()
	log.Info().
		Int("batches", snap.DeliveredBatches).
		Int("rows", snap.DeliveredRows).
		Int("child_rows", snap.ChildRows).
		Int("queries", snap.Queries).
		Dur("elapsed", snap.ElapsedTime).
		Msg("batch processing finished")
	return nil
}

func (p *Processor) run(ctx context.Context, consumer Consumer) error {
	log := zerolog.Ctx(ctx)

	keys, err := collect(ctx, p.exec, 0, p.primary.Name, p.primary.KeyQuery, Params{})
	if err != nil {
		return err
	}
	assignment, err := p.partitioner.Partition(ctx, keys, p.primary.IDColumn, p.primary.Ordering, p.batchSize)
	if err != nil {
		return err
	}

	rng, ok := ResolveRange(assignment)
	totalBatches := 0
	if ok {
		totalBatches = rng.Len()
	}
	progress := NewProgress(assignment.Len(), totalBatches, p.batchSize)
	progress.AddQueries(1)

	p.mu.Lock()
	p.assignment = assignment
	p.progress = progress
	p.state = StatePartitioned
	p.mu.Unlock()

	if !ok {
		log.Debug().Msg("no primary rows, nothing to process")
		return nil
	}

	p.mu.Lock()
	p.rng = rng
	p.resolved = true
	p.state = StateResolved
	p.mu.Unlock()

	log.Debug().
		Int("rows", assignment.Len()).
		Int("batch_size", p.batchSize).
		Int("min_batch", rng.Min).
		Int("max_batch", rng.Max).
		Msg("batch range resolved")

	loader := &ChildLoader{exec: p.exec, assignment: assignment, specs: p.children}
	if p.prefetch > 0 {
		return p.runPipelined(ctx, loader, rng, consumer, progress)
	}
	return p.runSequential(ctx, loader, rng, consumer, progress)
}

func (p *Processor) runSequential(
	ctx context.Context,
	loader *ChildLoader,
	rng Range,
	consumer Consumer,
	progress *Progress,
) error {
	for b := rng.Min; b <= rng.Max; b++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.enter(b)
		lb, err := p.loadBatch(ctx, loader, b)
		if err != nil {
			return err
		}
		if err := p.deliver(ctx, lb, consumer, progress); err != nil {
			return err
		}
	}
	return nil
}

// enter marks batch b as the one being processed.
func (p *Processor) enter(b int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateProcessing
	p.batch = b
}

func (p *Processor) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrProcessorRunning
	}
	if p.state == StateDone {
		return ErrProcessorDone
	}
	p.running = true
	return nil
}

func (p *Processor) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	p.state = StateDone
	p.resident = nil
}

// loadedBatch is a batch whose children and primary rows are resident and
// ready for delivery.
type loadedBatch struct {
	batch   int
	start   time.Time
	index   *ChildIndex
	records []Record
	stats   BatchStats
}

func (lb *loadedBatch) release() {
	if lb.index != nil {
		lb.index.Release()
	}
	lb.records = nil
}

// loadBatch builds the child index of batch b and joins the batch's primary
// rows against it. When the executor hands out sessions, one is held for the
// duration of the load.
func (p *Processor) loadBatch(ctx context.Context, loader *ChildLoader, b int) (lb *loadedBatch, err error) {
	start := time.Now()

	exec := p.exec
	if provider, ok := p.exec.(SessionProvider); ok {
		session, acquireErr := provider.Acquire(ctx)
		if acquireErr != nil {
			return nil, fmt.Errorf("batch %d: acquiring session: %w", b, acquireErr)
		}
		defer func() {
			if closeErr := session.Close(); closeErr != nil {
				err = multierror.Append(err, fmt.Errorf("batch %d: releasing session: %w", b, closeErr)).ErrorOrNil()
				if lb != nil {
					lb.release()
					lb = nil
				}
			}
		}()
		exec = session
	}

	index, stats, err := loader.load(ctx, exec, b)
	if err != nil {
		return nil, err
	}

	records, err := p.fetchPrimary(ctx, exec, loader.assignment, b, index)
	if err != nil {
		index.Release()
		return nil, err
	}

	return &loadedBatch{
		batch:   b,
		start:   start,
		index:   index,
		records: records,
		stats: BatchStats{
			Batch:      b,
			Rows:       len(records),
			ChildRows:  stats.Rows,
			OrphanRows: stats.OrphanRows,
			Queries:    stats.Queries + 1,
		},
	}, nil
}

// fetchPrimary reads the primary rows of batch b and pairs each with its
// children, in primary order. Rows for identifiers outside the batch are
// ignored; an identifier of the batch without a row is an error.
func (p *Processor) fetchPrimary(
	ctx context.Context,
	exec QueryExecutor,
	assignment *Assignment,
	b int,
	index *ChildIndex,
) ([]Record, error) {
	ids := assignment.IDs(b)
	params := Params{
		ParamIDs:      ids,
		ParamBatchIDs: ids,
		ParamBatch:    b,
	}
	rows, err := collect(ctx, exec, b, p.primary.Name, p.primary.RowQuery, params)
	if err != nil {
		return nil, err
	}

	byID := make(map[any]Row, len(ids))
	ignored := 0
	for _, row := range rows {
		id, err := normalizeID(row[p.primary.IDColumn])
		if err != nil {
			return nil, fmt.Errorf("batch %d: %s column %q: %w", b, p.primary.Name, p.primary.IDColumn, err)
		}
		if got, ok := assignment.BatchOf(id); !ok || got != b {
			ignored++
			continue
		}
		if _, dup := byID[id]; dup {
			ignored++
			continue
		}
		byID[id] = row
	}
	if ignored > 0 {
		zerolog.Ctx(ctx).Debug().Int("batch", b).Int("ignored_rows", ignored).Msg("primary rows outside batch ignored")
	}

	records := make([]Record, len(ids))
	for i, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: batch %d, %s %s=%v", ErrMissingPrimaryRow, b, p.primary.Name, p.primary.IDColumn, id)
		}
		rank, _ := assignment.Rank(id)
		records[i] = Record{
			Batch:    b,
			Position: rank,
			Node:     Node{Row: row, Children: index.attach(id, p.children)},
		}
	}
	return records, nil
}

// deliver hands every record of lb to consumer and releases the batch.
func (p *Processor) deliver(ctx context.Context, lb *loadedBatch, consumer Consumer, progress *Progress) error {
	p.enter(lb.batch)
	p.mu.Lock()
	p.resident = lb.index
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.resident = nil
		p.mu.Unlock()
		lb.release()
	}()

	deliveryCtx := context.WithoutCancel(ctx)
	for _, rec := range lb.records {
		if err := consumer(deliveryCtx, rec); err != nil {
			return fmt.Errorf("batch %d: consumer: %w", lb.batch, err)
		}
	}

	lb.stats.Duration = time.Since(lb.start)
	progress.AddBatch(lb.stats)

	zerolog.Ctx(ctx).Debug().
		Int("batch", lb.batch).
		Int("rows", lb.stats.Rows).
		Int("child_rows", lb.stats.ChildRows).
		Int("queries", lb.stats.Queries).
		Dur("duration", lb.stats.Duration).
		Msg("batch delivered")

	if p.onBatch != nil {
		p.onBatch(lb.stats)
	}
	if p.onProgress != nil {
		p.onProgress(progress.Snapshot())
	}
	return nil
}

// residentIndex returns the child index currently held for delivery.
func (p *Processor) residentIndex() *ChildIndex {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resident
}
