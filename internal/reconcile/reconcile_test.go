package reconcile

import (
	"testing"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1  = now.Add(-2 * time.Hour)
	t2  = now.Add(-1 * time.Hour)
)

func item(id string, updated time.Time, lastActor string) domain.Item {
	return domain.Item{ID: id, Number: 1, Title: "PR " + id, UpdatedAt: updated, LastActor: lastActor}
}

func ids(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestDedup_FirstListWins(t *testing.T) {
	a := []domain.Item{{ID: "1", Category: domain.CategoryAssigned}, {ID: "2", Category: domain.CategoryAssigned}}
	b := []domain.Item{{ID: "2", Category: domain.CategoryReviewRequested}, {ID: "3", Category: domain.CategoryReviewRequested}}

	out := Dedup(a, b)
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
	assert.Equal(t, domain.CategoryAssigned, out[1].Category)
}

func TestReconcile_NeverSeenIsUnseen(t *testing.T) {
	// No seen entry means unseen.
	out := Reconcile(Input{
		Created: []domain.Item{item("1", t1, "alice")},
		Seen:    domain.SeenMap{},
		User:    "bob",
		Now:     now,
	})

	assert.True(t, out.Unseen)
	assert.Equal(t, 1, out.UnseenCount)
	assert.Equal(t, 1, out.Snapshot.Total())
	assert.Empty(t, out.Seen, "reconciler never creates seen entries")
}

func TestReconcile_SelfUpdateSuppressed(t *testing.T) {
	// The viewer being the last actor suppresses an otherwise newer update.
	out := Reconcile(Input{
		Created: []domain.Item{item("1", t2, "bob")},
		Seen:    domain.SeenMap{"1": t1},
		User:    "bob",
		Now:     now,
	})

	assert.False(t, out.Unseen)
	require.Len(t, out.Snapshot.Created, 1)
	assert.Equal(t, t2, out.Snapshot.Created[0].UpdatedAt)
}

func TestReconcile_SelfUpdateSuppressedCaseInsensitive(t *testing.T) {
	out := Reconcile(Input{
		Created: []domain.Item{item("1", t2, "Bob")},
		User:    "bob",
		Now:     now,
	})
	assert.False(t, out.Unseen)
}

func TestReconcile_UnchangedNeverUnseen(t *testing.T) {
	for _, actor := range []string{"", "alice", "bob"} {
		out := Reconcile(Input{
			Created: []domain.Item{item("1", t1, actor)},
			Seen:    domain.SeenMap{"1": t1},
			User:    "bob",
			Now:     now,
		})
		assert.False(t, out.Unseen, "actor %q", actor)
	}
}

func TestReconcile_NewerUpdateIsUnseen(t *testing.T) {
	out := Reconcile(Input{
		Assigned: []domain.Item{item("1", t2, "alice")},
		Seen:     domain.SeenMap{"1": t1},
		User:     "bob",
		Now:      now,
	})
	assert.True(t, out.Unseen)
}

func TestReconcile_ComparesInstantsNotZones(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	out := Reconcile(Input{
		Created: []domain.Item{item("1", t1, "alice")},
		Seen:    domain.SeenMap{"1": t1.In(est)},
		User:    "bob",
		Now:     now,
	})
	assert.False(t, out.Unseen)
}

func TestReconcile_PrunesAbsentIDs(t *testing.T) {
	// Seen entries for ids missing from this cycle are pruned.
	out := Reconcile(Input{
		Created: []domain.Item{item("1", t1, "")},
		Seen:    domain.SeenMap{"1": t1, "2": t1},
		User:    "bob",
		Now:     now,
	})

	assert.Equal(t, domain.SeenMap{"1": t1}, out.Seen)
	assert.Equal(t, []string{"1"}, ids(out.Snapshot.Created))
}

func TestReconcile_DoesNotMutateInputSeen(t *testing.T) {
	in := domain.SeenMap{"1": t1, "2": t1}
	Reconcile(Input{Created: []domain.Item{item("1", t1, "")}, Seen: in, Now: now})
	assert.Len(t, in, 2)
}

func TestReconcile_HideInactiveOnlyAffectsDisplay(t *testing.T) {
	// The inactivity filter trims the snapshot only, never the seen-map or signal.
	old := item("old", now.Add(-40*24*time.Hour), "alice")
	fresh := item("fresh", t1, "alice")

	out := Reconcile(Input{
		Created:      []domain.Item{old},
		Assigned:     []domain.Item{fresh},
		Seen:         domain.SeenMap{"fresh": t1, "old": old.UpdatedAt.Add(-time.Hour)},
		User:         "bob",
		HideInactive: true,
		Now:          now,
	})

	assert.Empty(t, out.Snapshot.Created)
	assert.Equal(t, []string{"fresh"}, ids(out.Snapshot.Assigned))
	assert.True(t, out.Unseen, "hidden item still counts toward the signal")
	assert.Contains(t, out.Seen, "old", "hidden item keeps its seen entry")
}

func TestReconcile_HideInactiveBoundary(t *testing.T) {
	edge := item("edge", now.Add(-DefaultInactivityThreshold), "")
	out := Reconcile(Input{Created: []domain.Item{edge}, HideInactive: true, Now: now})
	assert.Equal(t, []string{"edge"}, ids(out.Snapshot.Created))

	out = Reconcile(Input{
		Created:             []domain.Item{item("x", now.Add(-2*time.Hour), "")},
		HideInactive:        true,
		InactivityThreshold: time.Hour,
		Now:                 now,
	})
	assert.Empty(t, out.Snapshot.Created)
}

func TestReconcile_ShowsInactiveWhenNotHiding(t *testing.T) {
	old := item("old", now.Add(-400*24*time.Hour), "")
	out := Reconcile(Input{Created: []domain.Item{old}, Now: now})
	assert.Equal(t, []string{"old"}, ids(out.Snapshot.Created))
}

func TestReconcile_CreatedWinsCategoryConflict(t *testing.T) {
	created := item("1", t1, "")
	created.Category = domain.CategoryAuthored
	assigned := item("1", t1, "")
	assigned.Category = domain.CategoryAssigned

	out := Reconcile(Input{
		Created:  []domain.Item{created},
		Assigned: []domain.Item{assigned, item("2", t1, "")},
		Now:      now,
	})

	assert.Equal(t, []string{"1"}, ids(out.Snapshot.Created))
	assert.Equal(t, []string{"2"}, ids(out.Snapshot.Assigned))
	assert.Equal(t, 2, out.Snapshot.Total())
}

func TestReconcile_Idempotent(t *testing.T) {
	in := Input{
		Created:  []domain.Item{item("1", t2, "alice"), item("3", t1, "bob")},
		Assigned: []domain.Item{item("2", t1, "carol")},
		Seen:     domain.SeenMap{"1": t1, "2": t1, "9": t1},
		User:     "bob",
		Now:      now,
	}

	first := Reconcile(in)
	in.Seen = first.Seen
	second := Reconcile(in)

	assert.Equal(t, first.Seen, second.Seen)
	assert.Equal(t, first.Unseen, second.Unseen)
	assert.Equal(t, first.Snapshot, second.Snapshot)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	out := Reconcile(Input{Seen: domain.SeenMap{"1": t1}, Now: now})

	assert.False(t, out.Unseen)
	assert.Empty(t, out.Seen)
	assert.NotNil(t, out.Snapshot.Created)
	assert.NotNil(t, out.Snapshot.Assigned)
}
