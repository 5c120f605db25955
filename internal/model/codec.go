package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// postRecord is the persisted shape of a Post. The key set is fixed.
type postRecord struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Author     string         `json:"author"`
	URL        string         `json:"url"`
	CreatedAt  string         `json:"created_at"`
	IngestedAt string         `json:"ingested_at"`
	Metadata   map[string]any `json:"metadata"`
}

// localISOLayout matches ISO-8601 timestamps written without a zone offset.
const localISOLayout = "2006-01-02T15:04:05.999999999"

// EncodePosts renders posts as an indented JSON array in the given order.
func EncodePosts(posts []Post) ([]byte, error) {
	records := make([]postRecord, 0, len(posts))
	for _, p := range posts {
		records = append(records, postRecord{
			ID:         p.ID,
			SourceID:   p.SourceID,
			Title:      p.Title,
			Content:    p.Content,
			Author:     p.Author,
			URL:        p.URL,
			CreatedAt:  FormatTime(p.CreatedAt),
			IngestedAt: FormatTime(p.IngestedAt),
			Metadata:   metadataRecord(p.Metadata),
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode posts: %w", err)
	}
	return data, nil
}

// DecodePosts parses a document written by EncodePosts.
func DecodePosts(data []byte) ([]Post, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []postRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]Post, 0, len(records))
	for i, r := range records {
		createdAt, err := ParseTime(r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("post %d: parse created_at: %w", i, err)
		}
		ingestedAt, err := ParseTime(r.IngestedAt)
		if err != nil {
			return nil, fmt.Errorf("post %d: parse ingested_at: %w", i, err)
		}

		posts = append(posts, Post{
			ID:         r.ID,
			SourceID:   r.SourceID,
			Title:      r.Title,
			Content:    r.Content,
			Author:     r.Author,
			URL:        r.URL,
			CreatedAt:  createdAt,
			IngestedAt: ingestedAt,
			Metadata:   normalizeNumbers(r.Metadata),
		})
	}
	return posts, nil
}

// EncodeMetadata renders a metadata object the way EncodePosts does. A nil
// map encodes as {}.
func EncodeMetadata(metadata map[string]any) ([]byte, error) {
	data, err := json.Marshal(metadataRecord(metadata))
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

// metadataRecord writes whole float values with a fraction so they decode
// as float64 rather than int64.
func metadataRecord(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok {
			out[k] = floatNumber(f)
			continue
		}
		out[k] = v
	}
	return out
}

func floatNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// DecodeMetadata parses a metadata object. Numbers written without a
// fraction or exponent decode as int64, other numbers as float64.
func DecodeMetadata(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return normalizeNumbers(raw), nil
}

func normalizeNumbers(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		if !strings.ContainsAny(n.String(), ".eE") {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
		}
		if f, err := n.Float64(); err == nil {
			out[k] = f
			continue
		}
		out[k] = n.String()
	}
	return out
}

// FormatTime renders t as an RFC 3339 timestamp in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC 3339 timestamps and zone-less ISO-8601 timestamps,
// which are read as UTC. An empty string yields the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	return time.ParseInLocation(localISOLayout, value, time.UTC)
}
