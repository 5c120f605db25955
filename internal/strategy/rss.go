package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

const (
	rssTypeName  = "rss"
	rssUserAgent = "Mozilla/5.0 (compatible; ingestion-engine/1.0)"
)

// RSSStrategy reads one RSS or Atom feed.
type RSSStrategy struct {
	source model.Source
	cfg    config.RSSConfig
	opts   Options

	client  *http.Client
	feedURL string // empty until Authenticate accepts the URL
}

// NewRSS creates a strategy for src. The feed URL is src.URL, or src.Name
// when no URL is configured.
func NewRSS(src model.Source, cfg config.RSSConfig, opts Options) *RSSStrategy {
	return &RSSStrategy{
		source: src,
		cfg:    cfg,
		opts:   opts,
		client: opts.httpClient(rssUserAgent),
	}
}

// Mode is AuthPublic once a feed URL was accepted.
func (r *RSSStrategy) Mode() AuthMode {
	if r.feedURL == "" {
		return AuthNone
	}
	return AuthPublic
}

// Authenticate needs no credentials; it only validates the feed URL.
func (r *RSSStrategy) Authenticate(_ context.Context) {
	raw := strings.TrimSpace(r.source.URL)
	if raw == "" {
		raw = strings.TrimSpace(r.source.Name)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fmt.Fprintf(r.opts.out(), "  rss: %s: %q is not an http(s) feed URL\n", r.source.Name, raw)
		r.feedURL = ""
		return
	}
	r.feedURL = u.String()
}

// IngestData parses the feed and returns its first limit items.
func (r *RSSStrategy) IngestData(ctx context.Context) []model.Post {
	if r.feedURL == "" {
		fmt.Fprintf(r.opts.out(), "  rss: %s: no feed URL, skipping\n", r.source.Name)
		return nil
	}
	defer r.client.CloseIdleConnections()

	fp := gofeed.NewParser()
	fp.Client = r.client
	feed, err := fp.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		fmt.Fprintf(r.opts.out(), "  rss: %s (source %s): %v\n", r.feedURL, r.source.ID, err)
		return nil
	}

	posts := r.postsFromFeed(feed, r.opts.now())
	fmt.Fprintf(r.opts.out(), "  rss: %s: %d posts\n", feedLabel(feed, r.feedURL), len(posts))
	return posts
}

func (r *RSSStrategy) postsFromFeed(feed *gofeed.Feed, ingestedAt time.Time) []model.Post {
	limit := r.cfg.Limit
	if limit <= 0 {
		limit = config.DefaultPageLimit
	}

	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	label := feedLabel(feed, r.feedURL)
	posts := make([]model.Post, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		raw := item.Content
		if raw == "" {
			raw = item.Description
		}
		posts = append(posts, model.NewPost(r.source, model.PostInput{
			Title:     r.opts.Redactor.Apply(strings.TrimSpace(item.Title)),
			Content:   r.opts.Redactor.Apply(htmlText(raw)),
			Author:    itemAuthor(item),
			URL:       item.Link,
			CreatedAt: itemPublishedTime(item),
			Metadata: map[string]any{
				"feed_title": label,
				"guid":       itemID(item),
			},
		}, ingestedAt))
	}
	return posts
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

func feedLabel(feed *gofeed.Feed, feedURL string) string {
	if feed.Title != "" {
		return feed.Title
	}
	return feedURL
}

func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// htmlText extracts readable text from an HTML fragment. Block elements and
// <br> become line breaks; runs of whitespace collapse to one space.
func htmlText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre").AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
