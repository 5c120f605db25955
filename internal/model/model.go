// Package model defines the canonical records that flow through an ingestion
// pass: the Source being ingested, the normalized Post, and the Insight shape
// reserved for later aggregation.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownAuthor is the author recorded when the origin record has none.
const UnknownAuthor = "Deleted"

// Source is one configured feed origin for the duration of a single run.
type Source struct {
	ID   string // fresh per construction
	Name string // source-specific identifier, e.g. "r/golang"
	URL  string
	Type string // strategy type tag: "reddit", "hn", "rss"
}

// NewSource returns a Source with a freshly generated ID.
func NewSource(sourceType, name, url string) Source {
	return Source{
		ID:   uuid.NewString(),
		Name: name,
		URL:  url,
		Type: sourceType,
	}
}

// ArtifactKey returns the sink key for a batch ingested from src:
// "{type}_{name}_{id}.json" with path separators in name replaced by "_".
func ArtifactKey(src Source) string {
	return src.Type + "_" + sanitizeName(src.Name) + "_" + src.ID + ".json"
}

var nameSanitizer = strings.NewReplacer("/", "_", `\`, "_")

func sanitizeName(name string) string {
	return nameSanitizer.Replace(name)
}

// Post is a normalized content item. Posts are built once by a strategy and
// are not modified afterwards.
type Post struct {
	ID         string
	SourceID   string
	Title      string
	Content    string
	Author     string
	URL        string
	CreatedAt  time.Time
	IngestedAt time.Time
	Metadata   map[string]any // scalar values only: string, bool, int64, float64
}

// PostInput holds the fields a strategy extracted from a raw record.
// Zero values are filled in by NewPost.
type PostInput struct {
	Title     string
	Content   string
	Author    string
	URL       string
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewPost builds a Post for src. An empty author becomes UnknownAuthor and a
// zero or unrepresentable CreatedAt becomes the ingestion time. NUL bytes are
// removed from text fields and string metadata.
func NewPost(src Source, in PostInput, ingestedAt time.Time) Post {
	ingestedAt = ingestedAt.UTC()

	author := strings.TrimSpace(stripNUL(in.Author))
	if author == "" {
		author = UnknownAuthor
	}

	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() || !representable(createdAt) {
		createdAt = ingestedAt
	}

	metadata := make(map[string]any, len(in.Metadata))
	for k, v := range in.Metadata {
		if s, ok := v.(string); ok {
			v = stripNUL(s)
		}
		metadata[k] = v
	}

	return Post{
		ID:         uuid.NewString(),
		SourceID:   src.ID,
		Title:      stripNUL(in.Title),
		Content:    stripNUL(in.Content),
		Author:     author,
		URL:        stripNUL(in.URL),
		CreatedAt:  createdAt,
		IngestedAt: ingestedAt,
		Metadata:   metadata,
	}
}

// representable reports whether t has a four-digit year, the range
// RFC 3339 timestamps can carry.
func representable(t time.Time) bool {
	y := t.Year()
	return y >= 1 && y <= 9999
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// Insight is a planned aggregation over posts. Nothing in the pipeline
// produces one yet.
type Insight struct {
	Title     string
	Summary   string
	SourceIDs []string
	KeyPoints []string
}

// NewInsight returns an Insight with empty, non-nil sequences.
func NewInsight(title, summary string) Insight {
	return Insight{
		Title:     title,
		Summary:   summary,
		SourceIDs: []string{},
		KeyPoints: []string{},
	}
}
