package predictions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/premium/premium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applicant() premium.RawRecord {
	return premium.RawRecord{
		"age":               30,
		"dependants":        0,
		"income":            10,
		"genetical_risk":    1,
		"insurance_plan":    "Gold",
		"gender":            "Male",
		"marital_status":    "Married",
		"employment_status": "Salaried",
		"bmi":               "Normal",
		"smoking":           "No",
		"region":            "Northwest",
		"medical_history":   "None",
	}
}

func newTestRecord(t *testing.T, p *premium.Pipeline, raw premium.RawRecord) *Record {
	t.Helper()
	rec, err := p.Validator().Validate(raw)
	require.NoError(t, err)
	res, err := p.PredictRecord(rec)
	require.NoError(t, err)
	return NewRecord("req-1", rec, res, false)
}

func testPipeline(t *testing.T) *premium.Pipeline {
	t.Helper()
	p, err := premium.Load("", premium.DefaultOptions())
	require.NoError(t, err)
	return p
}

func TestNewRecord(t *testing.T) {
	p := testPipeline(t)
	raw := applicant()
	raw["nickname"] = "Al"

	rec := newTestRecord(t, p, raw)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, 11500.0, rec.Premium)
	assert.Equal(t, "rest", rec.Segment)
	assert.Equal(t, p.Artifact().Version(), rec.ModelVersion)
	assert.NotContains(t, rec.Input, "nickname")
	assert.Equal(t, "Gold", rec.Input["insurance_plan"])
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	p := testPipeline(t)
	store := NewMemoryStore()

	first := newTestRecord(t, p, applicant())
	require.NoError(t, store.Record(ctx, first))
	assert.Error(t, store.Record(ctx, first), "duplicate IDs are rejected")

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// returned records are copies
	got.Input["insurance_plan"] = "Bronze"
	again, _ := store.Get(ctx, first.ID)
	assert.Equal(t, "Gold", again.Input["insurance_plan"])

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreListRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &Record{ID: fmt.Sprintf("id-%d", i)}))
	}

	recent, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "id-4", recent[0].ID)
	assert.Equal(t, "id-2", recent[2].ID)

	all, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	for _, r := range all {
		assert.WithinDuration(t, time.Now(), r.CreatedAt, time.Minute)
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Record(ctx, &Record{ID: fmt.Sprintf("id-%d", i)})
			_, _ = store.ListRecent(ctx, 10)
		}(i)
	}
	wg.Wait()

	all, err := store.ListRecent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}
