// Package coordinator runs one ingestion pass over the configured sources.
//
// Every source gets its own goroutine, Source value and Strategy instance.
// Each goroutine resolves to an Outcome before the pass joins, so a fault in
// one source never reaches its siblings or the caller.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
	"github.com/Hou-dini/ingestion-engine/internal/sink"
	"github.com/Hou-dini/ingestion-engine/internal/strategy"
)

// Status is the terminal state of one source's ingestion.
type Status string

const (
	StatusSaved    Status = "saved"    // posts persisted
	StatusIngested Status = "ingested" // posts fetched, persistence skipped by option
	StatusEmpty    Status = "empty"    // no posts; nothing persisted
	StatusSkipped  Status = "skipped"  // no strategy for the source type
	StatusFailed   Status = "failed"   // panic or persistence error
)

var errNoSink = errors.New("no sink configured")

// Outcome describes how one source's ingestion ended.
type Outcome struct {
	Source   model.Source
	Status   Status
	Posts    int
	Key      string
	Err      error
	Duration time.Duration
}

// Summary is the result of a full pass, one Outcome per descriptor in
// descriptor order.
type Summary struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes with status s.
func (s Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Posts returns the total number of posts ingested across all sources.
func (s Summary) Posts() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.Posts
	}
	return n
}

// Options configures a Coordinator.
type Options struct {
	// SkipPersist runs fetch and normalization without calling Sink.Save.
	SkipPersist bool

	// Out receives status lines. Nil writes to stdout.
	Out io.Writer
}

// Coordinator dispatches sources to strategies and persists their posts.
type Coordinator struct {
	registry strategy.Registry
	sink     sink.Sink
	opts     Options

	outMu sync.Mutex
	out   io.Writer
}

// New creates a coordinator. s may be nil when opts.SkipPersist is set.
func New(registry strategy.Registry, s sink.Sink, opts Options) *Coordinator {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Coordinator{
		registry: registry,
		sink:     s,
		opts:     opts,
		out:      out,
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Run ingests every descriptor concurrently and returns once all of them
// have reached a terminal state.
func (c *Coordinator) Run(ctx context.Context, descriptors []config.SourceDescriptor) Summary {
	outcomes := make([]Outcome, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.IngestSource(ctx, d.Type, d.Name, d.URL)
		}()
	}
	wg.Wait()

	return Summary{Outcomes: outcomes}
}

// IngestSource runs authenticate, fetch and persist for one source. It never
// panics; every fault is reported through the returned Outcome.
func (c *Coordinator) IngestSource(ctx context.Context, sourceType, name, url string) (out Outcome) {
	src := model.NewSource(sourceType, name, url)
	out = Outcome{Source: src}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = fmt.Errorf("panic: %v", r)
			c.logf("  %s: %s: failed: %v\n", sourceType, name, out.Err)
		}
		out.Duration = time.Since(start)
	}()

	newStrategy, ok := c.registry.Lookup(sourceType)
	if !ok {
		c.logf("  %s: %s: no strategy for source type %q, skipping\n", sourceType, name, sourceType)
		out.Status = StatusSkipped
		return out
	}

	c.logf("  %s: %s: started\n", sourceType, name)

	st := newStrategy(src)
	st.Authenticate(ctx)
	fetched := st.IngestData(ctx)
	posts := ownPosts(src, fetched)
	if dropped := len(fetched) - len(posts); dropped > 0 {
		c.logf("  %s: %s: dropped %d posts with a foreign source id\n", sourceType, name, dropped)
	}
	out.Posts = len(posts)

	if len(posts) == 0 {
		c.logf("  %s: %s: no data, nothing to persist\n", sourceType, name)
		out.Status = StatusEmpty
		return out
	}

	if c.opts.SkipPersist {
		c.logf("  %s: %s: ingested %d posts (persistence skipped)\n", sourceType, name, len(posts))
		out.Status = StatusIngested
		return out
	}

	out.Key = model.ArtifactKey(src)
	if err := c.persist(ctx, posts, out.Key); err != nil {
		c.logf("  %s: %s: save %s: %v\n", sourceType, name, out.Key, err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	c.logf("  %s: %s: ingested %d posts -> %s\n", sourceType, name, len(posts), out.Key)
	out.Status = StatusSaved
	return out
}

func (c *Coordinator) persist(ctx context.Context, posts []model.Post, key string) error {
	if c.sink == nil {
		return errNoSink
	}
	return c.sink.Save(ctx, posts, key)
}

// ownPosts drops posts that do not reference src.
func ownPosts(src model.Source, posts []model.Post) []model.Post {
	kept := posts[:0:0]
	for _, p := range posts {
		if p.SourceID == src.ID {
			kept = append(kept, p)
		}
	}
	return kept
}
