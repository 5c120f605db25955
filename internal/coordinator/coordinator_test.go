package coordinator

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
	"github.com/Hou-dini/ingestion-engine/internal/sink"
	"github.com/Hou-dini/ingestion-engine/internal/strategy"
)

// recordingSink keeps saved artifacts in memory.
type recordingSink struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{saved: make(map[string][]byte)}
}

func (s *recordingSink) Save(_ context.Context, posts []model.Post, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	data, err := model.EncodePosts(posts)
	if err != nil {
		return err
	}
	s.saved[key] = data
	return nil
}

func (s *recordingSink) Load(_ context.Context, key string) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.saved[key]
	if !ok {
		return nil, sink.ErrNotFound
	}
	return model.DecodePosts(data)
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.saved {
		keys = append(keys, k)
	}
	return keys
}

// stubStrategy returns canned posts built against its own source.
type stubStrategy struct {
	src      model.Source
	inputs   []model.PostInput
	panicMsg string
	authed   bool
}

func (s *stubStrategy) Authenticate(context.Context) { s.authed = true }

func (s *stubStrategy) IngestData(context.Context) []model.Post {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if !s.authed {
		return nil
	}
	var posts []model.Post
	for _, in := range s.inputs {
		posts = append(posts, model.NewPost(s.src, in, time.Now()))
	}
	return posts
}

func stubConstructor(panicMsg string, inputs ...model.PostInput) strategy.Constructor {
	return func(src model.Source) strategy.Strategy {
		return &stubStrategy{src: src, inputs: inputs, panicMsg: panicMsg}
	}
}

func TestIngestSource_UnknownTypeNeverSaves(t *testing.T) {
	s := newRecordingSink()
	var out bytes.Buffer
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "x"})}, s, Options{Out: &out})

	o := c.IngestSource(context.Background(), "youtube", "MKBHD", "")

	if o.Status != StatusSkipped {
		t.Errorf("status = %q, want skipped", o.Status)
	}
	if len(s.keys()) != 0 {
		t.Errorf("saved %v, want nothing", s.keys())
	}
	if !strings.Contains(out.String(), `no strategy for source type "youtube"`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestIngestSource_EmptyBatchNotPersisted(t *testing.T) {
	s := newRecordingSink()
	var out bytes.Buffer
	c := New(strategy.Registry{"reddit": stubConstructor("")}, s, Options{Out: &out})

	o := c.IngestSource(context.Background(), "reddit", "r/quiet", "")

	if o.Status != StatusEmpty || o.Posts != 0 || o.Key != "" {
		t.Errorf("outcome = %+v, want empty", o)
	}
	if len(s.keys()) != 0 {
		t.Errorf("saved %v, want nothing", s.keys())
	}
	if !strings.Contains(out.String(), "no data") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_MockRedditPost(t *testing.T) {
	s := newRecordingSink()
	registry := strategy.Registry{
		"reddit": stubConstructor("", model.PostInput{
			Title:   "Mock post",
			Content: "This is a mocked reddit post",
			Author:  "mock_user",
		}),
	}
	c := New(registry, s, Options{Out: &bytes.Buffer{}})

	summary := c.Run(context.Background(), []config.SourceDescriptor{{Type: "reddit", Name: "r/test"}})

	keys := s.keys()
	if len(keys) != 1 {
		t.Fatalf("saved %d artifacts, want 1", len(keys))
	}
	key := keys[0]
	if !strings.Contains(key, "reddit") || !strings.Contains(key, "r_test") {
		t.Errorf("key = %q, want reddit and r_test", key)
	}

	posts, err := s.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Mock post" {
		t.Fatalf("posts = %+v, want one Mock post", posts)
	}
	if posts[0].Author != "mock_user" || posts[0].Content != "This is a mocked reddit post" {
		t.Errorf("post = %+v", posts[0])
	}

	o := summary.Outcomes[0]
	if o.Status != StatusSaved || o.Key != key || o.Posts != 1 {
		t.Errorf("outcome = %+v", o)
	}
	if posts[0].SourceID != o.Source.ID {
		t.Errorf("source_id = %q, want %q", posts[0].SourceID, o.Source.ID)
	}
}

func TestRun_PanicIsolated(t *testing.T) {
	s := newRecordingSink()
	registry := strategy.Registry{
		"good":  stubConstructor("", model.PostInput{Title: "ok"}),
		"boom":  stubConstructor("strategy exploded"),
		"other": stubConstructor("", model.PostInput{Title: "also ok"}, model.PostInput{Title: "two"}),
	}
	var out bytes.Buffer
	c := New(registry, s, Options{Out: &out})

	done := make(chan Summary, 1)
	go func() {
		done <- c.Run(context.Background(), []config.SourceDescriptor{
			{Type: "good", Name: "a"},
			{Type: "boom", Name: "b"},
			{Type: "other", Name: "c"},
		})
	}()

	var summary Summary
	select {
	case summary = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}

	if len(s.keys()) != 2 {
		t.Errorf("saved %v, want 2 artifacts", s.keys())
	}
	if summary.Count(StatusSaved) != 2 || summary.Count(StatusFailed) != 1 {
		t.Errorf("outcomes = %+v", summary.Outcomes)
	}
	failed := summary.Outcomes[1]
	if failed.Status != StatusFailed || failed.Err == nil || !strings.Contains(failed.Err.Error(), "strategy exploded") {
		t.Errorf("failed outcome = %+v", failed)
	}
	if summary.Posts() != 3 {
		t.Errorf("posts = %d, want 3", summary.Posts())
	}
}

func TestRun_SaveErrorIsolated(t *testing.T) {
	s := newRecordingSink()
	s.err = errors.New("disk full")
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "x"})}, s, Options{Out: &bytes.Buffer{}})

	summary := c.Run(context.Background(), []config.SourceDescriptor{
		{Type: "reddit", Name: "r/a"},
		{Type: "reddit", Name: "r/b"},
	})

	if summary.Count(StatusFailed) != 2 {
		t.Fatalf("outcomes = %+v, want 2 failed", summary.Outcomes)
	}
	for _, o := range summary.Outcomes {
		if !errors.Is(o.Err, s.err) {
			t.Errorf("err = %v, want disk full", o.Err)
		}
	}
}

func TestRun_SkipPersist(t *testing.T) {
	s := newRecordingSink()
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "x"})}, s, Options{SkipPersist: true, Out: &bytes.Buffer{}})

	summary := c.Run(context.Background(), []config.SourceDescriptor{{Type: "reddit", Name: "r/test"}})

	if len(s.keys()) != 0 {
		t.Errorf("saved %v with skip-persist", s.keys())
	}
	if summary.Outcomes[0].Status != StatusIngested || summary.Outcomes[0].Posts != 1 {
		t.Errorf("outcome = %+v", summary.Outcomes[0])
	}
}

func TestRun_NilSinkWithoutSkipPersist(t *testing.T) {
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "x"})}, nil, Options{Out: &bytes.Buffer{}})

	o := c.IngestSource(context.Background(), "reddit", "r/test", "")
	if o.Status != StatusFailed || !errors.Is(o.Err, errNoSink) {
		t.Errorf("outcome = %+v", o)
	}
}

func TestRun_FreshKeysPerRun(t *testing.T) {
	s := newRecordingSink()
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "x"})}, s, Options{Out: &bytes.Buffer{}})
	descriptors := []config.SourceDescriptor{{Type: "reddit", Name: "r/test"}}

	first := c.Run(context.Background(), descriptors)
	second := c.Run(context.Background(), descriptors)

	if first.Outcomes[0].Key == second.Outcomes[0].Key {
		t.Errorf("runs reused key %q", first.Outcomes[0].Key)
	}
	if len(s.keys()) != 2 {
		t.Errorf("saved %v, want 2", s.keys())
	}
}

func TestRun_NoDescriptors(t *testing.T) {
	c := New(strategy.Registry{}, newRecordingSink(), Options{Out: &bytes.Buffer{}})
	if summary := c.Run(context.Background(), nil); len(summary.Outcomes) != 0 {
		t.Errorf("outcomes = %+v", summary.Outcomes)
	}
}

func TestIngestSource_DropsForeignPosts(t *testing.T) {
	s := newRecordingSink()
	foreign := func(src model.Source) strategy.Strategy {
		return &foreignStrategy{own: src}
	}
	c := New(strategy.Registry{"reddit": foreign}, s, Options{Out: &bytes.Buffer{}})

	o := c.IngestSource(context.Background(), "reddit", "r/test", "")
	if o.Posts != 1 || o.Status != StatusSaved {
		t.Errorf("outcome = %+v, want 1 saved post", o)
	}
}

type foreignStrategy struct{ own model.Source }

func (f *foreignStrategy) Authenticate(context.Context) {}

func (f *foreignStrategy) IngestData(context.Context) []model.Post {
	now := time.Now()
	return []model.Post{
		model.NewPost(f.own, model.PostInput{Title: "mine"}, now),
		model.NewPost(model.NewSource("reddit", "r/other", ""), model.PostInput{Title: "not mine"}, now),
	}
}

func TestRun_WithFileSink(t *testing.T) {
	fs, err := sink.NewFile(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	c := New(strategy.Registry{"reddit": stubConstructor("", model.PostInput{Title: "Mock post"})}, fs, Options{Out: &bytes.Buffer{}})

	summary := c.Run(context.Background(), []config.SourceDescriptor{{Type: "reddit", Name: "r/test"}})
	o := summary.Outcomes[0]
	if o.Status != StatusSaved {
		t.Fatalf("outcome = %+v", o)
	}

	posts, err := fs.Load(context.Background(), o.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Mock post" {
		t.Errorf("posts = %+v", posts)
	}
}
