// Package strategy turns one configured source into normalized posts.
//
// A Strategy is built for a single model.Source and used for exactly one
// Authenticate/IngestData pair. Both calls are soft: credential problems
// leave the strategy inert and fetch errors are logged and produce no
// posts, so a caller never has to handle a strategy error.
package strategy

import (
	"context"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
	"github.com/Hou-dini/ingestion-engine/internal/privacy"
)

// Strategy authenticates against one source and fetches a page of posts.
type Strategy interface {
	// Authenticate prepares a session. Missing or rejected credentials are
	// logged and leave the strategy inert.
	Authenticate(ctx context.Context)

	// IngestData returns normalized posts in origin listing order. An inert
	// strategy, an empty listing, and a failed fetch all return no posts.
	IngestData(ctx context.Context) []model.Post
}

// Constructor builds a Strategy for src.
type Constructor func(src model.Source) Strategy

// Registry maps a source type tag to its Constructor.
type Registry map[string]Constructor

// Lookup returns the constructor registered for sourceType.
func (r Registry) Lookup(sourceType string) (Constructor, bool) {
	c, ok := r[sourceType]
	return c, ok
}

// Types returns the registered type tags in sorted order.
func (r Registry) Types() []string {
	types := make([]string, 0, len(r))
	for t := range r {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Options carries the collaborators shared by every strategy built from a
// Registry. Zero values select production defaults.
type Options struct {
	Transport http.RoundTripper // base transport; nil clones http.DefaultTransport per strategy
	Out       io.Writer         // status lines; nil writes to stdout
	Redactor  *privacy.Redactor
	Now       func() time.Time
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// httpClient returns a client owned by a single strategy. Every request
// carries userAgent.
func (o Options) httpClient(userAgent string) *http.Client {
	base := o.Transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &http.Client{Transport: &userAgentTransport{base: base, agent: userAgent}}
}

// NewRegistry registers the built-in strategies against cfg.
func NewRegistry(cfg *config.Config, opts Options) Registry {
	return Registry{
		redditTypeName: func(src model.Source) Strategy { return NewReddit(src, cfg.Reddit, opts) },
		hnTypeName:     func(src model.Source) Strategy { return NewHN(src, cfg.HN, opts) },
		rssTypeName:    func(src model.Source) Strategy { return NewRSS(src, cfg.RSS, opts) },
	}
}

// userAgentTransport injects a User-Agent header into every request.
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

func (t *userAgentTransport) CloseIdleConnections() {
	if c, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
