// Package sqlite is the production repository.Store implementation,
// backed by the single SQLite file internal/infra/db opens and migrates.
package sqlite

import (
	"database/sql"

	"russet/internal/repository"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Feeds() repository.FeedRepository                { return &feedRepo{db: s.db} }
func (s *Store) Entries() repository.EntryRepository              { return &entryRepo{db: s.db} }
func (s *Store) Users() repository.UserRepository                 { return &userRepo{db: s.db} }
func (s *Store) Sessions() repository.SessionRepository           { return &sessionRepo{db: s.db} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return &subRepo{db: s.db} }
