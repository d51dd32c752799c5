package entity

import "time"

// Feed is a subscribable source, identified by its canonical URL. Feed rows
// are shared across all users who subscribe to the same URL — there is
// exactly one Feed per distinct URL, never one per subscriber.
type Feed struct {
	ID    string // ULID
	URL   string
	Title string
}

// FetchStatus classifies the outcome of a single conditional fetch attempt.
type FetchStatus int

const (
	FetchStatusOK FetchStatus = iota
	FetchStatusNotModified
	FetchStatusClientError
	FetchStatusServerError
	FetchStatusParseError
)

func (s FetchStatus) String() string {
	switch s {
	case FetchStatusOK:
		return "ok"
	case FetchStatusNotModified:
		return "not_modified"
	case FetchStatusClientError:
		return "client_error"
	case FetchStatusServerError:
		return "server_error"
	case FetchStatusParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// FeedCheck records one polling attempt against a Feed. Its ID is a single
// database-wide monotonically increasing counter, deliberately decoupled
// from wall-clock ordering and from FeedID, so causal order between checks
// survives clock adjustments.
type FeedCheck struct {
	ID            uint64
	FeedID        string
	CheckedAt     time.Time
	Status        FetchStatus
	ETag          string // empty when the response carried none
	NextCheckTime time.Time
}

// Entry is one item within a Feed, captured at the FeedCheck that first saw
// it. Entries are append-only: there is no per-entry deleted flag, because
// "deletion" is a per-user overlay (see UserEntry.Tombstone), not a
// property of the entry itself.
type Entry struct {
	ID          string // ULID
	FeedID      string
	CheckID     uint64
	URL         string
	Title       string
	ArticleDate time.Time
	InternalID  string // feed-format-specific id used for de-duplication
}

// EntryView is an Entry joined with one user's read/tombstone overlay, the
// shape every entry-listing operation returns. An Entry with no UserEntry
// row reports Read=false, Tombstone=false — absence means "untouched", not
// an explicit state.
type EntryView struct {
	Entry
	Read         bool
	ReadAt       time.Time
	Tombstone    bool
	TombstoneAt  time.Time
}
