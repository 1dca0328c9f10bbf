// storefront/search/overlay.go

package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/norun9/microservices-demo-ambient/src/storefront/catalog"
)

// DefaultDelay is the quiet period before a search runs.
const DefaultDelay = 500 * time.Millisecond

// Overlay holds the state behind the product search box: the committed query,
// whether a search is outstanding, and the latest results.
type Overlay struct {
	client   catalog.Client
	debounce *Debouncer
	log      logrus.FieldLogger

	mu      sync.RWMutex
	query   string
	pending bool
	results []catalog.Product
	err     error
	seq     uint64
}

// Snapshot is a consistent view of an Overlay.
type Snapshot struct {
	Query   string            `json:"query"`
	Pending bool              `json:"pending"`
	Results []catalog.Product `json:"results"`
	Error   string            `json:"error,omitempty"`
}

// NewOverlay returns an overlay searching client. A non-positive delay means
// DefaultDelay.
func NewOverlay(client catalog.Client, delay time.Duration, log logrus.FieldLogger) *Overlay {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Overlay{
		client:   client,
		debounce: NewDebouncer(delay),
		log:      log.WithField("component", "search"),
		results:  []catalog.Product{},
	}
}

// Input records a keystroke. The search runs once input has been quiet for
// the delay; the value it sees is the last one typed. The search outlives
// ctx's cancellation but keeps its values.
func (o *Overlay) Input(ctx context.Context, value string) {
	o.mu.Lock()
	o.pending = true
	// results of a search already in flight are now stale
	o.seq++
	o.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	o.debounce.Trigger(func() { o.run(ctx, value) })
}

// Flush runs a waiting search immediately.
func (o *Overlay) Flush() bool { return o.debounce.Flush() }

// Close drops a waiting search.
func (o *Overlay) Close() {
	o.debounce.Stop()
	o.mu.Lock()
	o.pending = false
	o.mu.Unlock()
}

func (o *Overlay) Query() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.query
}

func (o *Overlay) Pending() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pending
}

// Results returns a copy of the latest results.
func (o *Overlay) Results() []catalog.Product {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]catalog.Product, len(o.results))
	copy(out, o.results)
	return out
}

// Err is the failure of the latest search, if any.
func (o *Overlay) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.err
}

func (o *Overlay) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Snapshot{
		Query:   o.query,
		Pending: o.pending,
		Results: make([]catalog.Product, len(o.results)),
	}
	copy(s.Results, o.results)
	if o.err != nil {
		s.Error = o.err.Error()
	}
	return s
}

func (o *Overlay) run(ctx context.Context, value string) {
	query := strings.TrimSpace(value)

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.query = query
	o.err = nil
	if query == "" {
		o.results = []catalog.Product{}
		o.pending = false
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	results, err := o.client.Search(ctx, query)

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.seq {
		// a newer search owns the state
		return
	}
	o.pending = false
	if err != nil {
		o.log.WithError(err).WithField("query", query).Warn("search: catalog search failed")
		o.err = err
		o.results = []catalog.Product{}
		return
	}
	if results == nil {
		results = []catalog.Product{}
	}
	o.results = results
}
