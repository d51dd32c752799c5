package feedreader

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// gofeedReader wraps github.com/mmcdole/gofeed, restricted to documents of
// one specific feed type. Two instances of this (AtomReader, RSSReader) are
// the two entries in the dispatcher's ordered reader set; a third format
// would be a third instance, not a new code path.
type gofeedReader struct {
	wantType string // "atom" or "rss", matching gofeed.Feed.FeedType
}

// AtomReader recognizes only Atom documents.
func AtomReader() Reader { return &gofeedReader{wantType: "atom"} }

// RSSReader recognizes only RSS documents.
func RSSReader() Reader { return &gofeedReader{wantType: "rss"} }

// MatchesHint reports whether a Content-Type value names this reader's
// format, e.g. application/atom+xml or application/rss+xml.
func (g *gofeedReader) MatchesHint(hint string) bool {
	return strings.Contains(strings.ToLower(hint), g.wantType)
}

func (g *gofeedReader) Read(data []byte) (Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return Feed{}, fmt.Errorf("feedreader: parse: %w", err)
	}
	if parsed.FeedType != g.wantType {
		return Feed{}, fmt.Errorf("feedreader: expected %s, got %s", g.wantType, parsed.FeedType)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		internalID := it.GUID
		if internalID == "" {
			internalID = it.Link
		}

		// Atom's article date is the entry's `updated` field; RSS's is
		// `pubDate`, falling back to wall clock when absent or
		// unparsable.
		publishedAt := time.Now()
		if g.wantType == "atom" {
			if it.UpdatedParsed != nil {
				publishedAt = *it.UpdatedParsed
			} else if it.PublishedParsed != nil {
				publishedAt = *it.PublishedParsed
			}
		} else {
			if it.PublishedParsed != nil {
				publishedAt = *it.PublishedParsed
			}
		}

		title := it.Title
		if title == "" && g.wantType == "rss" {
			title = "<untitled>"
		}

		items = append(items, Item{
			InternalID:  internalID,
			URL:         it.Link,
			Title:       title,
			PublishedAt: publishedAt,
		})
	}

	return Feed{Title: parsed.Title, Items: items}, nil
}

// DefaultReaders returns the closed, ordered reader set Russet dispatches
// against: Atom is tried before RSS, matching the order specified for
// conditional-fetch response parsing.
func DefaultReaders() []Reader {
	return []Reader{AtomReader(), RSSReader()}
}
