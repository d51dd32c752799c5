package sqlite_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"russet/internal/domain/entity"
	"russet/internal/infra/persistence/sqlite"
)

func TestFeedRepo_InsertCheck_AllocatesMaxPlusOneInOneTransaction(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	checkedAt := time.UnixMilli(1_700_000_000_000)
	next := checkedAt.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(id) FROM feed_checks")).
		WillReturnRows(sqlmock.NewRows([]string{"MAX(id)"}).AddRow(41))
	mock.ExpectExec("INSERT INTO feed_checks").
		WithArgs(42, "feed-1", checkedAt.UnixMilli(), int(entity.FetchStatusOK), `"v1"`, next.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := sqlite.New(db).Feeds()
	id, err := repo.InsertCheck(context.Background(), entity.FeedCheck{
		FeedID:        "feed-1",
		CheckedAt:     checkedAt,
		Status:        entity.FetchStatusOK,
		ETag:          `"v1"`,
		NextCheckTime: next,
	})
	if err != nil {
		t.Fatalf("InsertCheck err=%v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestFeedRepo_InsertCheck_FirstCheckGetsIDOne(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	// MAX(id) over an empty table is NULL, which must read back as 0.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(id) FROM feed_checks")).
		WillReturnRows(sqlmock.NewRows([]string{"MAX(id)"}).AddRow(nil))
	mock.ExpectExec("INSERT INTO feed_checks").
		WithArgs(1, "feed-1", sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := sqlite.New(db).Feeds()
	id, err := repo.InsertCheck(context.Background(), entity.FeedCheck{FeedID: "feed-1"})
	if err != nil {
		t.Fatalf("InsertCheck err=%v", err)
	}
	if id != 1 {
		t.Fatalf("expected first check to get id 1, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestFeedRepo_LastCheck_MapsColumns(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	checkedAt := time.UnixMilli(1_700_000_000_000)
	next := checkedAt.Add(time.Hour)
	want := entity.FeedCheck{
		ID:            7,
		FeedID:        "feed-1",
		CheckedAt:     checkedAt,
		Status:        entity.FetchStatusNotModified,
		ETag:          `"v2"`,
		NextCheckTime: next,
	}

	mock.ExpectQuery("FROM feed_checks").
		WithArgs("feed-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "feed_id", "checked_at", "status", "etag", "next_check_time",
		}).AddRow(want.ID, want.FeedID, checkedAt.UnixMilli(), int(want.Status), want.ETag, next.UnixMilli()))

	repo := sqlite.New(db).Feeds()
	got, err := repo.LastCheck(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("LastCheck err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LastCheck mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestFeedRepo_GetByURL_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM feeds").
		WithArgs("https://example.com/feed.xml").
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "title"}))

	repo := sqlite.New(db).Feeds()
	if _, err := repo.GetByURL(context.Background(), "https://example.com/feed.xml"); err != entity.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
