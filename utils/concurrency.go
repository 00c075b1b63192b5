package utils

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines, optionally
// spacing job starts by a minimum interval so providers are not hammered.
type WorkerPool struct {
	semaphore   chan struct{}
	minInterval time.Duration
	wg          sync.WaitGroup

	mu        sync.Mutex
	lastStart time.Time

	// OnPanic is called with the recovered value when a job panics.
	// A panicking job never takes the pool or its siblings down.
	OnPanic func(v any)
}

// NewWorkerPool creates a WorkerPool running at most maxWorkers jobs at once.
func NewWorkerPool(maxWorkers int, minInterval time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore:   make(chan struct{}, maxWorkers),
		minInterval: minInterval,
	}
}

// Submit enqueues a job. It blocks while all workers are busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()
		defer func() {
			if r := recover(); r != nil && wp.OnPanic != nil {
				wp.OnPanic(r)
			}
		}()

		wp.throttle()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) throttle() {
	if wp.minInterval <= 0 {
		return
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if elapsed := time.Since(wp.lastStart); elapsed < wp.minInterval {
		time.Sleep(wp.minInterval - elapsed)
	}
	wp.lastStart = time.Now()
}

// URLSet is a thread-safe set of listing URLs. URLs are compared after
// dropping the fragment, tracking query parameters and a trailing slash,
// so the same item linked from two providers collapses to one key.
type URLSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
// Empty URLs are never recorded and always report true.
func (s *URLSet) Add(raw string) bool {
	key := CanonicalURL(raw)
	if key == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// CanonicalURL lower-cases scheme and host and strips utm_* parameters,
// the fragment and a trailing slash.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// PanicError turns a recovered panic value into an error.
func PanicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
