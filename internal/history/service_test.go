package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, tdb.Logger), tdb
}

func TestHistoryService_Record(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	q := candidate.UnknownQuality()
	q.Source = candidate.Facet[candidate.Source]{Value: candidate.SourceGOG, Confidence: candidate.ConfidenceTag}
	data, err := ToJSON(GrabbedData{Indexer: "test-indexer", ClientName: "qbit"})
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	e := &Event{
		TitleID:     1,
		EventType:   EventTypeGrabbed,
		SourceTitle: "Some.Game.GOG",
		DownloadID:  "abc",
		Quality:     &q,
		Data:        data,
	}
	if err := service.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == 0 {
		t.Error("Record() ID = 0, want non-zero")
	}
	if e.Date.IsZero() {
		t.Error("Record() Date not set")
	}

	got, err := service.MostRecentForTitle(ctx, 1)
	if err != nil {
		t.Fatalf("MostRecentForTitle() error = %v", err)
	}
	if got.EventType != EventTypeGrabbed {
		t.Errorf("EventType = %q, want %q", got.EventType, EventTypeGrabbed)
	}
	if got.Quality == nil || got.Quality.Source.Value != candidate.SourceGOG {
		t.Errorf("Quality = %+v, want gog source", got.Quality)
	}
	if got.Data["indexer"] != "test-indexer" {
		t.Errorf("Data[indexer] = %v, want test-indexer", got.Data["indexer"])
	}
}

func TestHistoryService_MostRecentForTitle(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	if _, err := service.MostRecentForTitle(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MostRecentForTitle() error = %v, want ErrNotFound", err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, et := range []EventType{EventTypeGrabbed, EventTypeDownloadFolderImported} {
		if err := service.Record(ctx, &Event{TitleID: 1, EventType: et, SourceTitle: "Some.Game", Date: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if err := service.Record(ctx, &Event{TitleID: 2, EventType: EventTypeGrabbed, SourceTitle: "Other", Date: base.Add(5 * time.Hour)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := service.MostRecentForTitle(ctx, 1)
	if err != nil {
		t.Fatalf("MostRecentForTitle() error = %v", err)
	}
	if got.EventType != EventTypeDownloadFolderImported {
		t.Errorf("EventType = %q, want %q", got.EventType, EventTypeDownloadFolderImported)
	}

	list, err := service.ListByTitle(ctx, 1)
	if err != nil {
		t.Fatalf("ListByTitle() error = %v", err)
	}
	if len(list) != 2 || list[0].EventType != EventTypeDownloadFolderImported {
		t.Errorf("ListByTitle() = %d events, newest %v", len(list), list)
	}
}

func TestHistoryService_SinceAndTrim(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		if err := service.Record(ctx, &Event{TitleID: 1, EventType: EventTypeGrabbed, SourceTitle: "g", Date: base.AddDate(0, 0, day)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	since, err := service.Since(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Since() error = %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("Since() returned %d events, want 2", len(since))
	}
	if !since[0].Date.Before(since[1].Date) {
		t.Error("Since() not ordered oldest first")
	}

	removed, err := service.Trim(ctx, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Trim() removed %d, want 2", removed)
	}

	if err := service.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	resp, err := service.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 0 || len(resp.Items) != 0 {
		t.Errorf("List() after Purge = %d items, want 0", resp.TotalCount)
	}
}

func TestHistoryService_FindByDownloadIDAndHasEvent(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	if err := service.Record(ctx, &Event{TitleID: 1, EventType: EventTypeGrabbed, SourceTitle: "g", DownloadID: "dl-1"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events, err := service.FindByDownloadID(ctx, "dl-1")
	if err != nil {
		t.Fatalf("FindByDownloadID() error = %v", err)
	}
	if len(events) != 1 || events[0].TitleID != 1 {
		t.Errorf("FindByDownloadID() = %+v", events)
	}

	if events, _ := service.FindByDownloadID(ctx, ""); events != nil {
		t.Errorf("FindByDownloadID(\"\") = %v, want nil", events)
	}

	has, err := service.HasEvent(ctx, "dl-1", EventTypeGrabbed)
	if err != nil || !has {
		t.Errorf("HasEvent(grabbed) = %v, %v; want true", has, err)
	}
	has, err = service.HasEvent(ctx, "dl-1", EventTypeDownloadFailed)
	if err != nil || has {
		t.Errorf("HasEvent(failed) = %v, %v; want false", has, err)
	}
}

func TestHistoryService_ListPagination(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		et := EventTypeGrabbed
		if i%2 == 1 {
			et = EventTypeDownloadFailed
		}
		if err := service.Record(ctx, &Event{TitleID: int64(i%2 + 1), EventType: et, SourceTitle: "g"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	resp, err := service.List(ctx, ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 5 || resp.TotalPages != 3 || len(resp.Items) != 2 {
		t.Errorf("List() = total %d pages %d items %d; want 5/3/2", resp.TotalCount, resp.TotalPages, len(resp.Items))
	}

	resp, err = service.List(ctx, ListOptions{EventType: string(EventTypeDownloadFailed)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 2 {
		t.Errorf("List(failed) total = %d, want 2", resp.TotalCount)
	}

	resp, err = service.List(ctx, ListOptions{TitleID: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 3 {
		t.Errorf("List(title 1) total = %d, want 3", resp.TotalCount)
	}
}

func TestHistoryService_CleanupOldEntries(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	settings, err := service.GetRetentionSettings(ctx)
	if err != nil {
		t.Fatalf("GetRetentionSettings() error = %v", err)
	}
	if settings != DefaultRetentionSettings() {
		t.Errorf("GetRetentionSettings() = %+v, want defaults", settings)
	}

	if err := service.SaveRetentionSettings(ctx, RetentionSettings{Enabled: true, RetentionDays: 30}); err != nil {
		t.Fatalf("SaveRetentionSettings() error = %v", err)
	}

	old := &Event{TitleID: 1, EventType: EventTypeGrabbed, SourceTitle: "old", Date: now.AddDate(0, 0, -45)}
	recent := &Event{TitleID: 1, EventType: EventTypeGrabbed, SourceTitle: "recent", Date: now.AddDate(0, 0, -5)}
	for _, e := range []*Event{old, recent} {
		if err := service.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	if err := service.CleanupOldEntries(ctx); err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}

	events, err := service.ListByTitle(ctx, 1)
	if err != nil {
		t.Fatalf("ListByTitle() error = %v", err)
	}
	if len(events) != 1 || events[0].SourceTitle != "recent" {
		t.Errorf("after cleanup = %+v, want only recent", events)
	}
}
