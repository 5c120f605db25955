package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

const (
	redditTypeName    = "reddit"
	redditTokenURL    = "https://www.reddit.com/api/v1/access_token"
	redditAPIBase     = "https://oauth.reddit.com"
	redditPublicBase  = "https://www.reddit.com"
	redditDeletedUser = "[deleted]"
)

// AuthMode is how a Reddit session was established.
type AuthMode string

const (
	AuthNone              AuthMode = ""
	AuthPassword          AuthMode = "password"
	AuthClientCredentials AuthMode = "client_credentials"
)

// RedditStrategy reads the hot listing of one subreddit through the
// authenticated API.
type RedditStrategy struct {
	source model.Source
	cfg    config.RedditConfig
	opts   Options

	tokenURL string
	apiBase  string

	base   *http.Client
	client *http.Client // nil until Authenticate succeeds
	mode   AuthMode
}

// NewReddit creates a strategy for src. Nothing is contacted until
// Authenticate.
func NewReddit(src model.Source, cfg config.RedditConfig, opts Options) *RedditStrategy {
	agent := cfg.UserAgent
	if agent == "" {
		agent = config.DefaultUserAgent
	}
	return &RedditStrategy{
		source:   src,
		cfg:      cfg,
		opts:     opts,
		tokenURL: redditTokenURL,
		apiBase:  redditAPIBase,
		base:     opts.httpClient(agent),
	}
}

// Mode reports how the current session was authenticated.
func (s *RedditStrategy) Mode() AuthMode {
	return s.mode
}

// Authenticate exchanges the configured credentials for a bearer token.
// Username and password select the password grant; otherwise the app-only
// client credentials grant is used.
func (s *RedditStrategy) Authenticate(ctx context.Context) {
	s.client, s.mode = nil, AuthNone

	if config.IsPlaceholder(s.cfg.ClientID) || config.IsPlaceholder(s.cfg.ClientSecret) {
		fmt.Fprintf(s.opts.out(), "  reddit: %s: client credentials missing or placeholder (set %s and %s)\n",
			s.source.Name, s.cfg.ClientIDEnv, s.cfg.ClientSecretEnv)
		return
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)

	var (
		ts   oauth2.TokenSource
		mode AuthMode
	)
	if s.cfg.Username != "" && s.cfg.Password != "" {
		conf := &oauth2.Config{
			ClientID:     s.cfg.ClientID,
			ClientSecret: s.cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  s.tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		tok, err := conf.PasswordCredentialsToken(ctx, s.cfg.Username, s.cfg.Password)
		if err != nil {
			fmt.Fprintf(s.opts.out(), "  reddit: %s: password auth failed: %v\n", s.source.Name, err)
			return
		}
		ts, mode = conf.TokenSource(ctx, tok), AuthPassword
	} else {
		conf := &clientcredentials.Config{
			ClientID:     s.cfg.ClientID,
			ClientSecret: s.cfg.ClientSecret,
			TokenURL:     s.tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		src := conf.TokenSource(ctx)
		tok, err := src.Token()
		if err != nil {
			fmt.Fprintf(s.opts.out(), "  reddit: %s: client credentials auth failed: %v\n", s.source.Name, err)
			return
		}
		ts, mode = oauth2.ReuseTokenSource(tok, src), AuthClientCredentials
	}

	s.client = oauth2.NewClient(ctx, ts)
	s.mode = mode
}

// IngestData fetches the hot listing of the source's subreddit.
func (s *RedditStrategy) IngestData(ctx context.Context) []model.Post {
	if s.client == nil {
		fmt.Fprintf(s.opts.out(), "  reddit: %s: not authenticated, skipping\n", s.source.Name)
		return nil
	}
	defer s.base.CloseIdleConnections()

	name := NormalizeSubreddit(s.source.Name)
	if name == "" {
		fmt.Fprintf(s.opts.out(), "  reddit: %q: not a subreddit name\n", s.source.Name)
		return nil
	}

	posts, err := s.fetchHot(ctx, name)
	if err != nil {
		fmt.Fprintf(s.opts.out(), "  reddit: r/%s (source %s): %v\n", name, s.source.ID, err)
		return nil
	}
	fmt.Fprintf(s.opts.out(), "  reddit: r/%s: %d posts\n", name, len(posts))
	return posts
}

func (s *RedditStrategy) fetchHot(ctx context.Context, subreddit string) ([]model.Post, error) {
	limit := s.cfg.Limit
	if limit <= 0 {
		limit = config.DefaultPageLimit
	}

	u := fmt.Sprintf("%s/r/%s/hot?limit=%d&raw_json=1", s.apiBase, url.PathEscape(subreddit), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	children := listing.Data.Children
	if len(children) > limit {
		children = children[:limit]
	}

	now := s.opts.now()
	posts := make([]model.Post, 0, len(children))
	for _, child := range children {
		posts = append(posts, s.normalize(submissionFromRaw(child.Data), now))
	}
	return posts, nil
}

// normalize maps one submission onto a Post. Absent fields fall back to
// empty strings, "Deleted" for the author, and ingestedAt for created_at.
func (s *RedditStrategy) normalize(sub submission, ingestedAt time.Time) model.Post {
	author := valueOr(sub.Author, "")
	if author == redditDeletedUser {
		author = ""
	}

	var createdAt time.Time
	if sub.CreatedUTC != nil && *sub.CreatedUTC > 0 {
		sec, frac := math.Modf(*sub.CreatedUTC)
		createdAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	metadata := map[string]any{
		"score":        valueOr(sub.Score, 0),
		"num_comments": valueOr(sub.NumComments, 0),
	}
	permalink := ""
	if sub.Permalink != nil && *sub.Permalink != "" {
		permalink = redditPublicBase + *sub.Permalink
		metadata["permalink"] = permalink
	}
	if sub.Subreddit != nil && *sub.Subreddit != "" {
		metadata["subreddit"] = *sub.Subreddit
	}

	link := valueOr(sub.URL, "")
	if link == "" {
		link = permalink
	}

	return model.NewPost(s.source, model.PostInput{
		Title:     s.opts.Redactor.Apply(valueOr(sub.Title, "")),
		Content:   s.opts.Redactor.Apply(valueOr(sub.Selftext, "")),
		Author:    author,
		URL:       link,
		CreatedAt: createdAt,
		Metadata:  metadata,
	}, ingestedAt)
}

// NormalizeSubreddit reduces the accepted spellings of a subreddit
// ("X", "r/X", "/r/X/", "https://www.reddit.com/r/X/") to the bare name.
func NormalizeSubreddit(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}

	if strings.Contains(n, "reddit.com") {
		if i := strings.Index(n, "/r/"); i >= 0 {
			n = n[i+len("/r/"):]
		}
	}
	switch {
	case strings.HasPrefix(n, "/r/"):
		n = n[len("/r/"):]
	case strings.HasPrefix(n, "r/"):
		n = n[len("r/"):]
	}

	n = strings.Trim(n, "/ ")
	if strings.Contains(n, "/") {
		parts := strings.FieldsFunc(n, func(r rune) bool { return r == '/' })
		if len(parts) > 0 {
			n = parts[len(parts)-1]
		}
	}
	return n
}

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

// submission is a listing entry after type checking. A nil field was absent
// or had an unexpected type.
type submission struct {
	Title       *string
	Selftext    *string
	Author      *string
	URL         *string
	Permalink   *string
	Subreddit   *string
	CreatedUTC  *float64
	Score       *int64
	NumComments *int64
}

func submissionFromRaw(raw map[string]any) submission {
	return submission{
		Title:       stringField(raw, "title"),
		Selftext:    stringField(raw, "selftext"),
		Author:      stringField(raw, "author"),
		URL:         stringField(raw, "url"),
		Permalink:   stringField(raw, "permalink"),
		Subreddit:   stringField(raw, "subreddit"),
		CreatedUTC:  floatField(raw, "created_utc"),
		Score:       intField(raw, "score"),
		NumComments: intField(raw, "num_comments"),
	}
}

func stringField(raw map[string]any, key string) *string {
	v, ok := raw[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func floatField(raw map[string]any, key string) *float64 {
	switch v := raw[key].(type) {
	case float64:
		return &v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func intField(raw map[string]any, key string) *int64 {
	f := floatField(raw, key)
	if f == nil {
		return nil
	}
	i := int64(*f)
	return &i
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
