package history

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/session"
	"git.lost.host/meutraa/vbeat/internal/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLogger = slog.New(slog.DiscardHandler)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), nopLogger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// play taps every note lateMs late and holds every hold to its end.
func play(t *testing.T, cfg *config.Config, chart *game.Chart, lateMs int64, skip int) *session.Result {
	t.Helper()
	s := session.New(cfg, chart.Clone(), nopLogger)
	ups := map[int64][]int{}
	downs := map[int64][]int{}
	for i, n := range chart.Notes {
		if i%skip == skip-1 {
			continue
		}
		downs[n.Ms+lateMs] = append(downs[n.Ms+lateMs], n.Lane)
		up := n.Ms + lateMs + 50
		if n.IsHold() {
			up = n.EndMs
		}
		ups[up] = append(ups[up], n.Lane)
	}
	for now := int64(0); s.Finish() == session.Running && now < 12000; now++ {
		for _, l := range downs[now] {
			s.LaneDown(l, now)
		}
		for _, l := range ups[now] {
			s.LaneUp(l, now)
		}
		if now%cfg.Scoring.SweepIntervalMs == 0 {
			s.Sweep(now)
		}
	}
	s.EndOfTrack(12000)
	return s.Result()
}

func TestSaveAndLoad(t *testing.T) {
	cfg := config.Default()
	chart, err := testdata.GetChart()
	require.NoError(t, err)
	store := open(t)
	ctx := context.Background()

	good := play(t, cfg, chart, 10, 1000)
	bad := play(t, cfg, chart, 90, 4)
	require.Greater(t, good.Score, bad.Score)

	_, err = store.Save(ctx, chart, bad, 1)
	require.NoError(t, err)
	id, err := store.Save(ctx, chart, good, 1.5)
	require.NoError(t, err)

	records, err := store.Load(ctx, chart)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id, records[0].ID, "best first")
	assert.Equal(t, good.RunID, records[0].RunID)
	assert.Equal(t, good.Score, records[0].Score)
	assert.Equal(t, good.Grade, records[0].Grade)
	assert.Equal(t, 1.5, records[0].Rate)
	assert.Equal(t, "cleared", records[0].Finish)
	assert.Equal(t, good.Inputs, records[0].Inputs)
	assert.False(t, records[0].CreatedAt.IsZero())

	recent, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, id, recent[0].ID)

	other := game.NewChart(game.Difficulty{Name: "other", Lanes: 7}, []game.Note{{Lane: 0, Type: game.Tap, Ms: 100}})
	none, err := store.Load(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGet(t *testing.T) {
	store := open(t)
	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplay(t *testing.T) {
	cfg := config.Default()
	chart, err := testdata.GetChart()
	require.NoError(t, err)
	store := open(t)
	ctx := context.Background()

	live := play(t, cfg, chart, 30, 5)
	id, err := store.Save(ctx, chart, live, 1)
	require.NoError(t, err)
	rec, err := store.Get(ctx, id)
	require.NoError(t, err)

	replayed, err := Replay(cfg, chart, rec)
	require.NoError(t, err)
	assert.Equal(t, live.Score, replayed.Score)
	assert.Equal(t, live.Misses, replayed.Misses)
	assert.Equal(t, live.MaxCombo, replayed.MaxCombo)

	edited := chart.Clone()
	edited.Notes[0].Ms += 10
	_, err = Replay(cfg, edited, rec)
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	chart, err := testdata.GetChart()
	require.NoError(t, err)
	clone := chart.Clone()
	assert.Equal(t, Sum(chart), Sum(clone))

	clone.Notes[3].Lane = 4
	assert.NotEqual(t, Sum(chart), Sum(clone))
}
