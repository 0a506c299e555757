package reminderservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solstice-io/solstice/internal/apperr"
	"github.com/solstice-io/solstice/internal/models"
	"github.com/solstice-io/solstice/internal/store"
	"github.com/solstice-io/solstice/internal/testutil"
)

// contendedStore simulates another writer winning every conditional write.
type contendedStore struct {
	store.ReminderStore
}

func (s *contendedStore) SaveIf(*models.Reminder, time.Time) (bool, error) {
	return false, nil
}

func TestUpdateConflictOnConcurrentWrite(t *testing.T) {
	db := testutil.TestStore(t)
	rec := &models.Reminder{
		Owner:       "alice",
		Title:       "contested",
		ScheduledAt: time.Now().UTC(),
		Timezone:    "UTC",
		Priority:    models.PriorityMedium,
		Status:      models.StatusPending,
		SyncStatus:  models.SyncSynced,
	}
	if err := db.Create(rec); err != nil {
		t.Fatal(err)
	}

	svc := NewService(&contendedStore{ReminderStore: db}, nil, nil)
	title := "my edit"
	_, err := svc.Update(context.Background(), "alice", rec.ID, models.ChangePatch{Title: &title}, "")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestMutationsFireNotifier(t *testing.T) {
	db := testutil.TestStore(t)

	var kinds []string
	svc := NewService(db, nil, func(kind, id string) {
		if id == "" {
			t.Errorf("notifier got empty id for %q", kind)
		}
		kinds = append(kinds, kind)
	})

	ctx := context.Background()
	created, err := svc.Create(ctx, "alice", CreateInput{
		Title:       "note to self",
		ScheduledAt: "2024-07-01",
	})
	if err != nil {
		t.Fatal(err)
	}
	title := "edited"
	if _, err := svc.Update(ctx, "alice", created.ID, models.ChangePatch{Title: &title}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Complete(ctx, "alice", created.ID, ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "alice", created.ID); err != nil {
		t.Fatal(err)
	}

	want := []string{"created", "updated", "updated", "deleted"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}
