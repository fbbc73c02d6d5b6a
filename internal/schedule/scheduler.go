// Package schedule decides when a lint job for a document actually runs.
// It owns per-document debounce timers, a bounded concurrency gate with FIFO
// waiters, a deduplicated overflow queue and per-document cancellation of
// in-flight runs, and it skips work for documents that changed again while
// waiting for a slot.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Reason describes what triggered a job request.
type Reason uint8

const (
	// ReasonSave runs immediately, subject to the gate.
	ReasonSave Reason = iota
	// ReasonType is debounced; only the timer firing starts an attempt.
	ReasonType
	// ReasonManual bypasses debounce and the overflow queue, waits on the
	// gate directly and lints the latest document content.
	ReasonManual
	// ReasonOpen runs immediately, subject to the gate.
	ReasonOpen
)

func (r Reason) String() string {
	switch r {
	case ReasonSave:
		return "save"
	case ReasonType:
		return "type"
	case ReasonManual:
		return "manual"
	case ReasonOpen:
		return "open"
	}
	return "unknown"
}

// RunFunc executes one lint job for a document at a specific version and
// returns a result count: -1 failure or cancellation, 0 nothing to report,
// >0 diagnostics found. The context is cancelled when a newer run for the
// same document starts.
type RunFunc func(ctx context.Context, uri string, version int) int

// VersionFunc reports the current version of a document, or ok=false when
// the document is no longer open.
type VersionFunc func(uri string) (version int, ok bool)

// Options configures a Scheduler.
type Options struct {
	// MaxConcurrent bounds simultaneously running jobs; clamped to >= 1.
	MaxConcurrent int
	Version       VersionFunc
	Run           RunFunc
	Log           zerolog.Logger
}

type pendingJob struct {
	reason  Reason
	version int
	waiters []chan int
}

// runToken identifies one in-flight run so a superseded run's bookkeeping
// can be told apart from its successor's.
type runToken struct {
	cancel context.CancelFunc
}

// Scheduler coordinates lint jobs across documents. All state is scoped to
// the instance; tests construct as many as they need.
type Scheduler struct {
	version VersionFunc
	run     RunFunc
	log     zerolog.Logger
	sem     *semaphore.Weighted
	baseCtx context.Context
	stop    context.CancelFunc

	mu       sync.Mutex
	pending  map[string]*pendingJob
	timers   map[string]*time.Timer
	queue    []string
	queued   map[string]struct{}
	inflight map[string]*runToken

	// draining marks an active drain pass; drainAgain records a slot
	// release that landed while that pass was underway.
	draining   bool
	drainAgain bool
}

// New constructs a Scheduler. Close releases its background context.
func New(opts Options) *Scheduler {
	capacity := opts.MaxConcurrent
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		version:  opts.Version,
		run:      opts.Run,
		log:      opts.Log,
		sem:      semaphore.NewWeighted(int64(capacity)),
		baseCtx:  ctx,
		stop:     cancel,
		pending:  make(map[string]*pendingJob),
		timers:   make(map[string]*time.Timer),
		queued:   make(map[string]struct{}),
		inflight: make(map[string]*runToken),
	}
}

// Close cancels all in-flight runs and stops pending timers. The scheduler
// must not be used afterwards.
func (s *Scheduler) Close() {
	s.stop()
	s.mu.Lock()
	for uri, t := range s.timers {
		t.Stop()
		delete(s.timers, uri)
	}
	s.mu.Unlock()
}

// Request records a job for uri. At most one logical job exists per
// document: a newer request replaces the pending job's reason and version
// rather than creating a second job. The returned channel receives the
// job's result count exactly once.
func (s *Scheduler) Request(uri string, reason Reason, version int, debounce time.Duration) <-chan int {
	ch := make(chan int, 1)

	s.mu.Lock()
	job, ok := s.pending[uri]
	if ok {
		job.reason = reason
		job.version = version
		job.waiters = append(job.waiters, ch)
	} else {
		s.pending[uri] = &pendingJob{reason: reason, version: version, waiters: []chan int{ch}}
	}
	s.mu.Unlock()

	s.log.Trace().Str("uri", uri).Stringer("reason", reason).Int("version", version).Msg("job requested")

	switch reason {
	case ReasonManual:
		go s.runManual(uri)
	case ReasonType:
		if debounce < 0 {
			debounce = 0
		}
		s.resetTimer(uri, debounce)
	default:
		s.runIfReady(uri)
	}
	return ch
}

// Clear drops any pending job, debounce timer and queue entry for uri and
// cancels its in-flight run. Used when a document closes or diagnostics are
// force-cleared. Waiters on the dropped job receive 0.
func (s *Scheduler) Clear(uri string) {
	s.mu.Lock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
		delete(s.timers, uri)
	}
	job := s.pending[uri]
	delete(s.pending, uri)
	s.removeQueuedLocked(uri)
	token := s.inflight[uri]
	delete(s.inflight, uri)
	s.mu.Unlock()

	if token != nil {
		token.cancel()
	}
	if job != nil {
		resolve(job.waiters, 0)
	}
}

func (s *Scheduler) resetTimer(uri string, debounce time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(debounce, func() {
		s.mu.Lock()
		if s.timers[uri] != timer {
			// A reset or Clear superseded this firing.
			s.mu.Unlock()
			return
		}
		delete(s.timers, uri)
		s.mu.Unlock()
		s.runIfReady(uri)
	})
	s.timers[uri] = timer
}

// runManual waits on the gate directly, ahead of anything merely queued,
// then runs against the latest document version.
func (s *Scheduler) runManual(uri string) {
	if err := s.sem.Acquire(s.baseCtx, 1); err != nil {
		s.failPending(uri)
		return
	}
	s.runWithRelease(uri, true)
}

// runIfReady clears any debounce timer for uri and attempts a run without
// blocking; if no slot is free the uri joins the overflow queue.
func (s *Scheduler) runIfReady(uri string) {
	s.mu.Lock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
		delete(s.timers, uri)
	}
	s.mu.Unlock()

	if s.sem.TryAcquire(1) {
		go s.runWithRelease(uri, false)
		return
	}

	s.mu.Lock()
	if _, ok := s.queued[uri]; !ok {
		s.queued[uri] = struct{}{}
		s.queue = append(s.queue, uri)
	}
	s.mu.Unlock()
	s.log.Trace().Str("uri", uri).Msg("gate exhausted, queued")
}

// runWithRelease consumes the pending job for uri and executes it. The held
// gate slot is released exactly once, and the drain loop runs, no matter
// how execution ends.
func (s *Scheduler) runWithRelease(uri string, forceLatest bool) {
	defer func() {
		s.sem.Release(1)
		s.drainQueue()
	}()

	s.mu.Lock()
	job, ok := s.pending[uri]
	if !ok {
		// Already consumed or cleared.
		s.mu.Unlock()
		return
	}
	delete(s.pending, uri)
	s.mu.Unlock()

	current, open := s.version(uri)
	if !open {
		// A closed document has no content to lint.
		resolve(job.waiters, 0)
		return
	}

	if current != job.version && !forceLatest {
		// The document changed while this job waited for its slot.
		// Hand the slot back and let the fresher content run later.
		stale := job.version
		s.mu.Lock()
		if existing, ok := s.pending[uri]; ok {
			existing.waiters = append(existing.waiters, job.waiters...)
		} else {
			job.version = current
			s.pending[uri] = job
		}
		if _, ok := s.queued[uri]; !ok {
			s.queued[uri] = struct{}{}
			s.queue = append(s.queue, uri)
		}
		s.mu.Unlock()
		s.log.Trace().Str("uri", uri).Int("stale", stale).Int("current", current).Msg("stale job requeued")
		return
	}

	version := job.version
	if forceLatest {
		version = current
	}

	ctx, token := s.beginRun(uri)
	count := s.run(ctx, uri, version)
	s.endRun(uri, token)
	resolve(job.waiters, count)
}

// beginRun cancels any prior in-flight run for uri and registers a new one.
func (s *Scheduler) beginRun(uri string) (context.Context, *runToken) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	token := &runToken{cancel: cancel}
	s.mu.Lock()
	prev := s.inflight[uri]
	s.inflight[uri] = token
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
	return ctx, token
}

func (s *Scheduler) endRun(uri string, token *runToken) {
	s.mu.Lock()
	if s.inflight[uri] == token {
		delete(s.inflight, uri)
	}
	s.mu.Unlock()
	token.cancel()
}

// drainQueue dispatches queued documents while slots are free. A single
// pass runs at a time. A slot released while a pass is underway may come
// too late for that pass's TryAcquire, so it is recorded in drainAgain and
// the active drainer runs one more pass instead of the release being lost.
func (s *Scheduler) drainQueue() {
	s.mu.Lock()
	if s.draining {
		s.drainAgain = true
		s.mu.Unlock()
		return
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	for {
		dispatched := s.drainPass()

		s.mu.Lock()
		if !s.continueDrainLocked(dispatched) {
			s.draining = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// continueDrainLocked decides whether the active drainer runs another pass.
// A pass that dispatched nothing still loops when a release was flagged
// mid-pass: that slot freed up after the pass had already failed to take it.
func (s *Scheduler) continueDrainLocked(dispatched int) bool {
	again := s.drainAgain
	s.drainAgain = false
	if len(s.queue) == 0 {
		return false
	}
	return dispatched > 0 || again
}

func (s *Scheduler) drainPass() int {
	dispatched := 0
	for {
		if !s.sem.TryAcquire(1) {
			return dispatched
		}
		s.mu.Lock()
		uri, ok := s.popQueuedLocked()
		s.mu.Unlock()
		if !ok {
			s.sem.Release(1)
			return dispatched
		}
		dispatched++
		go s.runWithRelease(uri, false)
	}
}

// popQueuedLocked pops the next queued uri that still has a pending job,
// skipping entries already satisfied or cleared.
func (s *Scheduler) popQueuedLocked() (string, bool) {
	for len(s.queue) > 0 {
		uri := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queued, uri)
		if _, ok := s.pending[uri]; ok {
			return uri, true
		}
	}
	return "", false
}

func (s *Scheduler) removeQueuedLocked(uri string) {
	if _, ok := s.queued[uri]; !ok {
		return
	}
	delete(s.queued, uri)
	for i, queued := range s.queue {
		if queued == uri {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
}

func (s *Scheduler) failPending(uri string) {
	s.mu.Lock()
	job := s.pending[uri]
	delete(s.pending, uri)
	s.mu.Unlock()
	if job != nil {
		resolve(job.waiters, -1)
	}
}

func resolve(waiters []chan int, count int) {
	for _, ch := range waiters {
		ch <- count
	}
}
