package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

const (
	hnTypeName   = "hn"
	hnAPIBase    = "https://hacker-news.firebaseio.com/v0"
	hnItemURL    = "https://news.ycombinator.com/item?id=%d"
	hnDefaultTop = "top"

	// AuthPublic marks a source that needs no credentials.
	AuthPublic AuthMode = "public"
)

var hnListings = map[string]bool{"top": true, "best": true, "new": true}

// HNStrategy reads one Hacker News story listing.
type HNStrategy struct {
	source model.Source
	cfg    config.HNConfig
	opts   Options

	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	listing string // empty until Authenticate accepts the name
}

// NewHN creates a strategy for src. The source name picks the listing:
// top (default), best or new.
func NewHN(src model.Source, cfg config.HNConfig, opts Options) *HNStrategy {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = config.DefaultHNRatePerSecond
	}
	return &HNStrategy{
		source:  src,
		cfg:     cfg,
		opts:    opts,
		baseURL: hnAPIBase,
		client:  opts.httpClient(config.DefaultUserAgent),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Mode is AuthPublic once the listing name was accepted.
func (h *HNStrategy) Mode() AuthMode {
	if h.listing == "" {
		return AuthNone
	}
	return AuthPublic
}

// Authenticate needs no credentials; it only validates the listing name.
func (h *HNStrategy) Authenticate(_ context.Context) {
	listing := hnListingName(h.source.Name)
	if !hnListings[listing] {
		fmt.Fprintf(h.opts.out(), "  hn: %q: unknown listing (want top, best or new)\n", h.source.Name)
		h.listing = ""
		return
	}
	h.listing = listing
}

func hnListingName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimSuffix(n, "stories")
	n = strings.TrimSpace(n)
	if n == "" || n == "hn" || n == "hackernews" {
		return hnDefaultTop
	}
	return n
}

// hnItem is a Hacker News item from the API.
type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Score       int64  `json:"score"`
	Time        int64  `json:"time"`
	Descendants int64  `json:"descendants"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// IngestData fetches the first limit items of the listing. Items are
// fetched concurrently and returned in listing order.
func (h *HNStrategy) IngestData(ctx context.Context) []model.Post {
	if h.listing == "" {
		fmt.Fprintf(h.opts.out(), "  hn: %s: no listing selected, skipping\n", h.source.Name)
		return nil
	}
	defer h.client.CloseIdleConnections()

	ids, err := h.fetchIDs(ctx)
	if err != nil {
		fmt.Fprintf(h.opts.out(), "  hn: %s (source %s): %v\n", h.listing, h.source.ID, err)
		return nil
	}

	limit := h.cfg.Limit
	if limit <= 0 {
		limit = config.DefaultPageLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return nil
	}

	items := make([]*hnItem, len(ids))
	errs := make([]error, len(ids))
	jobs := make(chan int, len(ids))

	workers := h.cfg.Workers
	if workers <= 0 {
		workers = config.DefaultHNWorkers
	}
	if len(ids) < workers {
		workers = len(ids)
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				items[i], errs[i] = h.fetchItem(ctx, ids[i])
			}
		}()
	}

	for i := range ids {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	now := h.opts.now()
	var posts []model.Post
	for i, item := range items {
		if errs[i] != nil {
			fmt.Fprintf(h.opts.out(), "  hn: %v\n", errs[i])
			continue
		}
		if item == nil || item.Deleted || item.Dead {
			continue
		}
		posts = append(posts, h.normalize(item, now))
	}

	fmt.Fprintf(h.opts.out(), "  hn: %s: %d posts\n", h.listing, len(posts))
	return posts
}

func (h *HNStrategy) normalize(item *hnItem, ingestedAt time.Time) model.Post {
	var createdAt time.Time
	if item.Time > 0 {
		createdAt = time.Unix(item.Time, 0).UTC()
	}

	link := item.URL
	if link == "" {
		link = fmt.Sprintf(hnItemURL, item.ID)
	}

	return model.NewPost(h.source, model.PostInput{
		Title:     h.opts.Redactor.Apply(item.Title),
		Content:   h.opts.Redactor.Apply(htmlText(item.Text)),
		Author:    item.By,
		URL:       link,
		CreatedAt: createdAt,
		Metadata: map[string]any{
			"score":       item.Score,
			"descendants": item.Descendants,
			"hn_id":       int64(item.ID),
			"type":        item.Type,
		},
	}, ingestedAt)
}

func (h *HNStrategy) fetchIDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := h.getJSON(ctx, fmt.Sprintf("%s/%sstories.json", h.baseURL, h.listing), &ids); err != nil {
		return nil, fmt.Errorf("%sstories: %w", h.listing, err)
	}
	return ids, nil
}

func (h *HNStrategy) fetchItem(ctx context.Context, id int) (*hnItem, error) {
	var item *hnItem
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &item); err != nil {
		return nil, fmt.Errorf("item %d: %w", id, err)
	}
	return item, nil
}

func (h *HNStrategy) getJSON(ctx context.Context, url string, v any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
