package writer

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/ValentinKolb/loadit/lib/util"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// request is a pending or running production of the shard at start.
// items and err are valid once done is closed.
type request[T any] struct {
	start  int
	writer int
	items  []T
	err    error
	done   chan struct{}
}

// Pool routes shard productions to a fixed set of writers.
//
// Every writer owns an ordered queue of requests. Only the head of a queue
// runs, everybody else waits on the writers condition variable. A request
// behind the tail of a queue is appended as a new pass: the writer finishes
// the shards ahead of it first and restarts once, instead of restarting
// before every shard that is still ahead. All queues and conditions share
// the scheduler mutex, so choosing a writer and enqueueing is one atomic step.
type Pool[T any] struct {
	store shardstore.IShardStore[T]

	mu      sync.Mutex
	writers []*Writer[T]
	queues  [][]*request[T]
	conds   []*sync.Cond
	closed  bool
	active  sync.WaitGroup

	latency     gometrics.Timer
	productions *metrics.Counter
	dedups      *metrics.Counter
}

// NewPool creates a pool of n writers (at least 1) over factory
func NewPool[T any](store shardstore.IShardStore[T], factory source.Factory[T], n int) *Pool[T] {
	n = max(n, 1)
	p := &Pool[T]{
		store:       store,
		writers:     make([]*Writer[T], n),
		queues:      make([][]*request[T], n),
		conds:       make([]*sync.Cond, n),
		latency:     gometrics.NewTimer(),
		productions: metrics.GetOrCreateCounter("loadit_pool_productions_total"),
		dedups:      metrics.GetOrCreateCounter("loadit_pool_deduplicated_requests_total"),
	}
	for i := range p.writers {
		p.writers[i] = NewWriter(i, factory)
		p.conds[i] = sync.NewCond(&p.mu)
	}
	return p
}

// Produce returns the shard starting at start, producing it if no writer did yet.
// Concurrent calls for the same start share one production and its result.
func (p *Pool[T]) Produce(start int) ([]T, error) {
	if length, known := p.store.Length(); known && start >= length {
		return nil, common.OutOfRange(start)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, common.NewError(common.ErrCInternal, "writer pool is closed")
	}

	req, existing := p.enqueue(start)
	if existing {
		p.mu.Unlock()
		p.dedups.Inc()
		<-req.done
		return req.items, req.err
	}

	p.active.Add(1)
	defer p.active.Done()

	for p.queues[req.writer][0] != req {
		p.conds[req.writer].Wait()
	}
	p.mu.Unlock()

	req.items, req.err = p.execute(req)

	p.mu.Lock()
	close(req.done)
	p.queues[req.writer] = p.queues[req.writer][1:]
	p.conds[req.writer].Broadcast()
	p.mu.Unlock()

	return req.items, req.err
}

// execute runs at the head of its queue. The shard may have been written by
// another writer since the request was queued.
func (p *Pool[T]) execute(req *request[T]) ([]T, error) {
	if items, ok, err := p.store.Read(req.start); err == nil && ok {
		return items, nil
	}
	if length, known := p.store.Length(); known && req.start >= length {
		return nil, common.OutOfRange(req.start)
	}

	begin := time.Now()
	items, err := p.writers[req.writer].IterateAndWriteShard(req.start, p.store)
	p.latency.UpdateSince(begin)
	if err == nil {
		p.productions.Inc()
	}
	return items, err
}

// enqueue finds a pending request for start or queues a new one on the
// cheapest writer. Callers must hold p.mu.
func (p *Pool[T]) enqueue(start int) (*request[T], bool) {
	// identical request anywhere
	for _, queue := range p.queues {
		for _, req := range queue {
			if req.start == start {
				return req, true
			}
		}
	}

	req := &request[T]{start: start, done: make(chan struct{})}

	// drive-by: a queue whose last pass brackets start reads past it anyway
	for i, queue := range p.queues {
		run := lastPass(queue)
		if len(queue)-run < 2 || queue[run].start >= start || queue[len(queue)-1].start <= start {
			continue
		}
		pos := len(queue) - 1
		for pos > run+1 && queue[pos-1].start > start {
			pos--
		}
		req.writer = i
		queue = append(queue, nil)
		copy(queue[pos+1:], queue[pos:])
		queue[pos] = req
		p.queues[i] = queue
		return req, false
	}

	best, bestGap := 0, -1
	for i := range p.writers {
		gap := p.gap(i, start)
		if bestGap < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}

	req.writer = best
	p.queues[best] = append(p.queues[best], req)
	return req, false
}

// lastPass returns the index where the last ascending run of queue begins.
// A start below its predecessor means the writer restarts its iterator there,
// so the queue is a series of passes, each one in increasing start order.
func lastPass[T any](queue []*request[T]) int {
	for k := len(queue) - 1; k > 0; k-- {
		if queue[k-1].start > queue[k].start {
			return k
		}
	}
	return 0
}

// gap is the number of items writer i has to read before it can produce start.
// Going backwards means a restart, which costs the position it already reached.
func (p *Pool[T]) gap(i, start int) int {
	position := p.writers[i].Position()
	if queue := p.queues[i]; len(queue) > 0 {
		position = queue[len(queue)-1].start + p.store.MaxShardLength()
	}
	if start >= position {
		return start - position
	}
	return position
}

// ---- Stats ----

// WriterStats describes a single writer
type WriterStats struct {
	ID          int   `json:"id"`
	Position    int   `json:"position"`
	Productions int64 `json:"productions"`
	Restarts    int64 `json:"restarts"`
	Queued      int   `json:"queued"`
}

// Stats summarises the work of a pool
type Stats struct {
	Writers      []WriterStats          `json:"writers"`
	Productions  int64                  `json:"productions"`
	Restarts     int64                  `json:"restarts"`
	Distribution util.DistributionStats `json:"distribution"`
	Latency      LatencyStats           `json:"latency"`
}

// LatencyStats are production latencies in milliseconds
type LatencyStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// Stats returns a snapshot of the pool counters
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Writers: make([]WriterStats, len(p.writers))}
	perWriter := make([]float64, len(p.writers))

	for i, w := range p.writers {
		ws := WriterStats{
			ID:          w.ID(),
			Position:    w.Position(),
			Productions: w.Productions(),
			Restarts:    w.Restarts(),
			Queued:      len(p.queues[i]),
		}
		stats.Writers[i] = ws
		stats.Productions += ws.Productions
		stats.Restarts += ws.Restarts
		perWriter[i] = float64(ws.Productions)
	}
	stats.Distribution = util.NewDistributionStats(perWriter)

	snapshot := p.latency.Snapshot()
	ms := float64(time.Millisecond)
	stats.Latency = LatencyStats{
		Count: snapshot.Count(),
		Mean:  snapshot.Mean() / ms,
		P50:   snapshot.Percentile(0.5) / ms,
		P99:   snapshot.Percentile(0.99) / ms,
		Max:   float64(snapshot.Max()) / ms,
	}
	return stats
}

func (s Stats) String() string {
	return fmt.Sprintf("%d writers, %d productions, %d restarts, distribution quality %.2f, mean latency %.2fms",
		len(s.Writers), s.Productions, s.Restarts, s.Distribution.DistributionQuality, s.Latency.Mean)
}

// Close waits for running productions and releases all iterators.
// Produce fails after Close.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.active.Wait()
	for _, w := range p.writers {
		w.Close()
	}
	p.latency.Stop()
}
