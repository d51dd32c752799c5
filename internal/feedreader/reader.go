// Package feedreader turns raw HTTP response bytes into a normalized Feed,
// trying a closed, ordered set of format readers until one succeeds.
package feedreader

import (
	"errors"
	"time"
)

// ErrParseFailed is returned by Dispatch when no reader in the set could
// make sense of the bytes.
var ErrParseFailed = errors.New("feedreader: no reader could parse the document")

// Item is one normalized entry parsed out of a feed document, prior to
// being turned into an entity.Entry (which additionally needs a FeedID,
// CheckID, and freshly-minted ULID).
type Item struct {
	InternalID  string // the feed format's own guid/id, used for de-duplication
	URL         string
	Title       string
	PublishedAt time.Time
}

// Feed is a normalized, already-parsed feed document.
type Feed struct {
	Title string
	Items []Item
}

// Reader attempts to parse a feed document. A Reader that recognizes the
// format but finds it malformed should return a non-nil error rather than
// a zero-value Feed, so Dispatch can move on to the next reader.
type Reader interface {
	Read(data []byte) (Feed, error)
}

// Dispatch tries each reader in order, returning the first successful
// parse. The trial order is the one piece of reader-selection policy the
// dispatcher has: there is no content-sniffing or registry lookup, only a
// fixed, ordered slice.
func Dispatch(readers []Reader, data []byte) (Feed, error) {
	for _, r := range readers {
		feed, err := r.Read(data)
		if err == nil {
			return feed, nil
		}
	}
	return Feed{}, ErrParseFailed
}

// Hinted is implemented by readers that can recognize their own format in
// a Content-Type header value.
type Hinted interface {
	MatchesHint(hint string) bool
}

// DispatchWithHint is Dispatch with the server's Content-Type taken as a
// hint: readers matching the hint are tried first. The hint only reorders
// the trial sequence for this one call — a wrong or lying Content-Type
// still falls through to every other reader.
func DispatchWithHint(readers []Reader, data []byte, hint string) (Feed, error) {
	if hint != "" {
		ordered := make([]Reader, 0, len(readers))
		var rest []Reader
		for _, r := range readers {
			if h, ok := r.(Hinted); ok && h.MatchesHint(hint) {
				ordered = append(ordered, r)
			} else {
				rest = append(rest, r)
			}
		}
		readers = append(ordered, rest...)
	}
	return Dispatch(readers, data)
}
