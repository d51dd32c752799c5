// Package memory is an in-process fake of internal/repository's interfaces,
// used by domain-service and scheduler tests so they can exercise real
// concurrency and ordering semantics without a database file.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"russet/internal/domain/entity"
	"russet/internal/repository"
)

type Store struct {
	mu sync.Mutex

	feeds         map[string]entity.Feed
	feedsByURL    map[string]string
	checks        map[string][]entity.FeedCheck // feedID -> checks, oldest first
	nextCheckID   uint64
	entries       map[string]entity.Entry
	entriesByFeed map[string][]string // feedID -> entry ids, insertion order
	userEntries   map[string]map[string]entity.UserEntry // userID -> entryID -> state

	users        map[string]entity.User
	usersByName  map[string]string
	sessions     map[string]entity.Session
	subsByUser   map[string]map[string]struct{}
	subsByFeed   map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		feeds:         make(map[string]entity.Feed),
		feedsByURL:    make(map[string]string),
		checks:        make(map[string][]entity.FeedCheck),
		entries:       make(map[string]entity.Entry),
		entriesByFeed: make(map[string][]string),
		userEntries:   make(map[string]map[string]entity.UserEntry),
		users:         make(map[string]entity.User),
		usersByName:   make(map[string]string),
		sessions:      make(map[string]entity.Session),
		subsByUser:    make(map[string]map[string]struct{}),
		subsByFeed:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) Feeds() repository.FeedRepository                 { return (*feedRepo)(s) }
func (s *Store) Entries() repository.EntryRepository               { return (*entryRepo)(s) }
func (s *Store) Users() repository.UserRepository                  { return (*userRepo)(s) }
func (s *Store) Sessions() repository.SessionRepository            { return (*sessionRepo)(s) }
func (s *Store) Subscriptions() repository.SubscriptionRepository  { return (*subRepo)(s) }

type feedRepo Store

func (r *feedRepo) GetByURL(ctx context.Context, url string) (entity.Feed, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.feedsByURL[url]
	if !ok {
		return entity.Feed{}, entity.ErrNotFound
	}
	return s.feeds[id], nil
}

func (r *feedRepo) GetByID(ctx context.Context, id string) (entity.Feed, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if !ok {
		return entity.Feed{}, entity.ErrNotFound
	}
	return f, nil
}

func (r *feedRepo) Create(ctx context.Context, feed entity.Feed) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[feed.ID] = feed
	s.feedsByURL[feed.URL] = feed.ID
	return nil
}

func (r *feedRepo) ListAll(ctx context.Context) ([]entity.Feed, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Feed, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *feedRepo) ListForUser(ctx context.Context, userID string) ([]entity.Feed, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Feed
	for feedID := range s.subsByUser[userID] {
		out = append(out, s.feeds[feedID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *feedRepo) LastCheck(ctx context.Context, feedID string) (entity.FeedCheck, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.checks[feedID]
	if len(list) == 0 {
		return entity.FeedCheck{}, entity.ErrNotFound
	}
	return list[len(list)-1], nil
}

func (r *feedRepo) InsertCheck(ctx context.Context, check entity.FeedCheck) (uint64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCheckID++
	check.ID = s.nextCheckID
	s.checks[check.FeedID] = append(s.checks[check.FeedID], check)
	return check.ID, nil
}

func (r *feedRepo) DueForCheck(ctx context.Context, now time.Time) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, list := range s.checks {
		if len(list) == 0 {
			continue
		}
		last := list[len(list)-1]
		if !last.NextCheckTime.After(now) {
			out = append(out, id)
		}
	}
	for id := range s.feeds {
		if _, seen := s.checks[id]; !seen {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type entryRepo Store

func (r *entryRepo) InternalIDsForFeed(ctx context.Context, feedID string) (map[string]struct{}, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range s.entriesByFeed[feedID] {
		out[s.entries[id].InternalID] = struct{}{}
	}
	return out, nil
}

func (r *entryRepo) InsertBatch(ctx context.Context, entries []entity.Entry) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.ID] = e
		s.entriesByFeed[e.FeedID] = append(s.entriesByFeed[e.FeedID], e.ID)
	}
	return nil
}

func (r *entryRepo) view(s *Store, userID string, e entity.Entry) entity.EntryView {
	ue := s.userEntries[userID][e.ID]
	return entity.EntryView{
		Entry: e, Read: ue.Read, ReadAt: ue.ReadAt,
		Tombstone: ue.Tombstone, TombstoneAt: ue.TombstoneAt,
	}
}

func sortAndPage(all []entity.EntryView, limit, offset int) []entity.EntryView {
	sort.Slice(all, func(i, j int) bool {
		if all[i].CheckID != all[j].CheckID {
			return all[i].CheckID > all[j].CheckID
		}
		return all[i].ArticleDate.After(all[j].ArticleDate)
	})
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (r *entryRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]entity.EntryView, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []entity.EntryView
	for feedID := range s.subsByUser[userID] {
		for _, id := range s.entriesByFeed[feedID] {
			v := r.view(s, userID, s.entries[id])
			if v.Tombstone {
				continue
			}
			all = append(all, v)
		}
	}
	return sortAndPage(all, limit, offset), nil
}

func (r *entryRepo) ListForFeed(ctx context.Context, userID, feedID string, limit, offset int) ([]entity.EntryView, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []entity.EntryView
	for _, id := range s.entriesByFeed[feedID] {
		v := r.view(s, userID, s.entries[id])
		if v.Tombstone {
			continue
		}
		all = append(all, v)
	}
	return sortAndPage(all, limit, offset), nil
}

func (r *entryRepo) GetByID(ctx context.Context, id string) (entity.Entry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return entity.Entry{}, entity.ErrNotFound
	}
	return e, nil
}

func (r *entryRepo) GetUserEntry(ctx context.Context, userID, entryID string) (entity.UserEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	ue, ok := s.userEntries[userID][entryID]
	if !ok {
		return entity.UserEntry{UserID: userID, EntryID: entryID}, entity.ErrNotFound
	}
	return ue, nil
}

func (r *entryRepo) SetUserEntry(ctx context.Context, userID, entryID string, read, tombstone *bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.userEntries[userID]
	if !ok {
		m = make(map[string]entity.UserEntry)
		s.userEntries[userID] = m
	}
	ue := m[entryID]
	ue.UserID, ue.EntryID = userID, entryID
	now := time.Now()
	if read != nil {
		ue.Read = *read
		if ue.Read {
			ue.ReadAt = now
		} else {
			ue.ReadAt = time.Time{}
		}
	}
	if tombstone != nil {
		ue.Tombstone = *tombstone
		if ue.Tombstone {
			ue.TombstoneAt = now
		} else {
			ue.TombstoneAt = time.Time{}
		}
	}
	m[entryID] = ue
	return nil
}

func (r *entryRepo) GetAndMarkRead(ctx context.Context, userID, entryID string) (entity.EntryView, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return entity.EntryView{}, entity.ErrNotFound
	}
	m, ok := s.userEntries[userID]
	if !ok {
		m = make(map[string]entity.UserEntry)
		s.userEntries[userID] = m
	}
	ue := m[entryID]
	ue.UserID, ue.EntryID, ue.Read, ue.ReadAt = userID, entryID, true, time.Now()
	m[entryID] = ue
	return r.view(s, userID, e), nil
}

type userRepo Store

func (r *userRepo) GetByID(ctx context.Context, id string) (entity.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return entity.User{}, entity.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByName(ctx context.Context, name string) (entity.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByName[name]
	if !ok {
		return entity.User{}, entity.ErrNotFound
	}
	return s.users[id], nil
}

func (r *userRepo) Create(ctx context.Context, user entity.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByName[user.Name]; exists {
		return entity.ErrAlreadyExists
	}
	s.users[user.ID] = user
	s.usersByName[user.Name] = user.ID
	return nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	u.PasswordHash = passwordHash
	s.users[id] = u
	return nil
}

// Delete removes a user and everything referencing it: sessions,
// subscriptions (both index directions), and UserEntry overlays. A real
// database enforces this with ON DELETE CASCADE; here it's done by hand
// since the fake has no foreign keys to lean on.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	delete(s.users, id)
	delete(s.usersByName, u.Name)

	for tok, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, tok)
		}
	}
	for feedID := range s.subsByUser[id] {
		delete(s.subsByFeed[feedID], id)
	}
	delete(s.subsByUser, id)
	delete(s.userEntries, id)
	return nil
}

func (r *userRepo) CountByType(ctx context.Context, t entity.UserType) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Type == t {
			n++
		}
	}
	return n, nil
}

type sessionRepo Store

func (r *sessionRepo) Create(ctx context.Context, session entity.Session) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, token string) (entity.Session, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return entity.Session{}, entity.ErrNotFound
	}
	return sess, nil
}

func (r *sessionRepo) Delete(ctx context.Context, token string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (r *sessionRepo) DeleteForUser(ctx context.Context, userID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, tok)
		}
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n, nil
}

type subRepo Store

func (r *subRepo) Create(ctx context.Context, sub entity.Subscription) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subsByUser[sub.UserID] == nil {
		s.subsByUser[sub.UserID] = make(map[string]struct{})
	}
	if s.subsByFeed[sub.FeedID] == nil {
		s.subsByFeed[sub.FeedID] = make(map[string]struct{})
	}
	s.subsByUser[sub.UserID][sub.FeedID] = struct{}{}
	s.subsByFeed[sub.FeedID][sub.UserID] = struct{}{}
	return nil
}

func (r *subRepo) Delete(ctx context.Context, userID, feedID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subsByUser[userID], feedID)
	delete(s.subsByFeed[feedID], userID)
	return nil
}

func (r *subRepo) ListFeedIDsForUser(ctx context.Context, userID string) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := range s.subsByUser[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *subRepo) ListUserIDsForFeed(ctx context.Context, feedID string) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id := range s.subsByFeed[feedID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (r *subRepo) Exists(ctx context.Context, userID, feedID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subsByUser[userID][feedID]
	return ok, nil
}
