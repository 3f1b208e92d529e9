package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

func table(t *testing.T, name string) *dataset.Table {
	tbl, err := dataset.NewTable(name, []string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)
	return tbl
}

func TestManager_Lifecycle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour)
	m.Now = func() time.Time { return now }

	s, created := m.GetOrCreate("")
	require.True(t, created)
	require.NotEmpty(t, s.ID)

	again, created := m.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	now = now.Add(2 * time.Hour)
	_, ok := m.Get(s.ID)
	assert.False(t, ok, "expired session is dropped")
	assert.Equal(t, 0, m.Len())

	fresh, created := m.GetOrCreate(s.ID)
	assert.True(t, created)
	assert.NotEqual(t, s.ID, fresh.ID)
}

func TestManager_SweepsIdleSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(time.Hour)
	m.Now = func() time.Time { return now }

	m.GetOrCreate("")
	m.GetOrCreate("")
	now = now.Add(3 * time.Hour)
	m.GetOrCreate("")
	assert.Equal(t, 1, m.Len())
}

func TestSession_DatasetClearsResult(t *testing.T) {
	s := &Session{ID: "x"}
	t1 := table(t, "a.csv")
	s.SetDataset("/up/a.csv", "a.csv", t1)

	res, err := analysis.NewSuccess(analysis.Success{Insights: []string{"i"}})
	require.NoError(t, err)
	assert.True(t, s.SetResult(t1, res))
	assert.False(t, s.Snapshot().Result.IsZero())

	t2 := table(t, "b.csv")
	s.SetDataset("/up/b.csv", "b.csv", t2)
	snap := s.Snapshot()
	assert.True(t, snap.Result.IsZero())
	assert.Equal(t, "b.csv", snap.Filename)

	assert.False(t, s.SetResult(t1, res), "stale result for a replaced dataset is ignored")

	s.Clear()
	assert.False(t, s.Snapshot().HasDataset())
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager(time.Hour)
	s, _ := m.GetOrCreate("")
	tbl := table(t, "c.csv")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _ := m.GetOrCreate(s.ID)
			got.SetDataset("/up/c.csv", "c.csv", tbl)
			_ = got.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Len())
}
