package semantic

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// ExecutorConfig parameterizes SemanticExecutor.
type ExecutorConfig struct {
	MaxConcurrentRequests int           // default 2
	QueueCap              int           // default 32
	JobTimeout            time.Duration // default 3s
	ShutdownGrace         time.Duration // default 5s
	StaleResultAge        time.Duration // default 2s
}

// DefaultExecutorConfig returns spec.md 6/5's documented defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrentRequests: 2,
		QueueCap:              32,
		JobTimeout:            3 * time.Second,
		ShutdownGrace:         5 * time.Second,
		StaleResultAge:        2 * time.Second,
	}
}

// job is the latest submitted payload for an identity. version lets run()
// detect whether a newer Submit coalesced in while this job was in flight.
type job struct {
	trackID int
	image   []byte
	prompt  string
	version uint64
}

type result struct {
	detections []Detection
	at         time.Time
}

// Executor is the bounded concurrent worker pool of spec.md 4.8. Submission
// and result retrieval are both non-blocking; workers never hold a
// pipeline lock. Grounded on orbo's internal/motion/stream_detector.go
// goroutine+channel worker pool, generalized from motion events to
// semantic inference jobs.
type Executor struct {
	cfg     ExecutorConfig
	backend Backend
	logger  *log.Logger

	queue chan int // track IDs; the payload itself lives in pending

	mu      sync.Mutex
	seq     uint64
	pending map[int]job // latest job registered per identity, queued or running
	results map[int]result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewExecutor constructs and starts the worker pool immediately.
func NewExecutor(cfg ExecutorConfig, backend Backend, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(os.Stderr, "[sentryfeed] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		queue:   make(chan int, cfg.QueueCap),
		pending: make(map[int]job),
		results: make(map[int]result),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.MaxConcurrentRequests; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case id, ok := <-e.queue:
			if !ok {
				return
			}
			e.mu.Lock()
			j, ok := e.pending[id]
			e.mu.Unlock()
			if !ok {
				continue // superseded and already resolved before dequeue
			}
			e.run(j)
		}
	}
}

func (e *Executor) run(j job) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.JobTimeout)
	defer cancel()

	dets, err := e.backend.Infer(ctx, j.image, j.prompt)

	e.mu.Lock()
	current, stillRegistered := e.pending[j.trackID]
	// A newer Submit coalesced into this identity's slot while the job
	// above was in flight: leave it registered and re-signal the pool so
	// the freshest payload still gets processed, instead of dropping it.
	superseded := stillRegistered && current.version != j.version
	if !superseded {
		delete(e.pending, j.trackID)
	}
	if err == nil {
		e.results[j.trackID] = result{detections: dets, at: time.Now()}
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Printf("semantic: job for track %d failed: %v", j.trackID, err)
	}
	if superseded {
		select {
		case e.queue <- j.trackID:
		case <-e.ctx.Done():
		default:
			// Queue momentarily full: drop the pending payload so the next
			// Submit for this identity enqueues afresh. GetResults sees no
			// result for the dropped payload.
			e.mu.Lock()
			delete(e.pending, j.trackID)
			e.mu.Unlock()
		}
	}
}

// Submit registers (trackID, image, prompt) as the latest payload for that
// identity, per spec.md 4.8's backpressure rule. If the identity already
// has a job queued or running, the new payload replaces it in place
// (coalescing) without consuming another queue slot. Only a brand-new
// identity can be dropped, and only when the queue is genuinely full.
func (e *Executor) Submit(trackID int, image []byte, prompt string) {
	e.mu.Lock()
	e.seq++
	_, alreadyPending := e.pending[trackID]
	e.pending[trackID] = job{trackID: trackID, image: image, prompt: prompt, version: e.seq}
	e.mu.Unlock()

	if alreadyPending {
		// The queued/running job for this identity will pick up the latest
		// payload from e.pending when it is dequeued or completes; no
		// second queue slot is needed.
		return
	}

	select {
	case e.queue <- trackID:
	case <-e.ctx.Done():
		e.mu.Lock()
		delete(e.pending, trackID)
		e.mu.Unlock()
	default:
		e.mu.Lock()
		delete(e.pending, trackID)
		e.mu.Unlock()
		e.logger.Printf("semantic: queue full, dropping submission for new track %d", trackID)
	}
}

// GetResults returns and clears every completed result, discarding any
// older than StaleResultAge, per spec.md 5.
func (e *Executor) GetResults() map[int][]Detection {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[int][]Detection, len(e.results))
	now := time.Now()
	for id, r := range e.results {
		if now.Sub(r.at) <= e.cfg.StaleResultAge {
			out[id] = r.detections
		}
		delete(e.results, id)
	}
	return out
}

// Stop cancels in-flight work after waiting up to ShutdownGrace for
// workers to finish cleanly, then forcibly cancels. Idempotent: a second
// and later call is a no-op, since spec.md 5 requires the pipeline (and
// its subsystems) to tolerate repeated Stop calls.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.queue)
		done := make(chan struct{})
		go func() {
			e.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(e.cfg.ShutdownGrace):
			e.cancel()
			<-done
		}
		e.cancel()
	})
}
