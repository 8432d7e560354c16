package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChart() *Chart {
	return NewChart(Difficulty{Name: "normal", Lanes: 7}, []Note{
		{Lane: 3, Type: Tap, Ms: 700},
		{Lane: 1, Type: Hold, Ms: 2000, EndMs: 3000},
		{Lane: 3, Type: Tap, Ms: 500},
		{Lane: 5, Type: Hold, Ms: 2000, EndMs: 3000},
	})
}

func TestNewChartSortsAndAssignsIDs(t *testing.T) {
	c := testChart()
	require.Len(t, c.Notes, 4)

	seen := map[NoteID]bool{}
	for i, n := range c.Notes {
		assert.NotZero(t, n.ID)
		assert.False(t, seen[n.ID], "duplicate id %d", n.ID)
		seen[n.ID] = true
		assert.Equal(t, Pending, n.Status)
		assert.Equal(t, NoTier, n.Tier)
		if i > 0 {
			assert.LessOrEqual(t, c.Notes[i-1].Ms, n.Ms)
		}
	}
	assert.Equal(t, int64(500), c.Notes[0].Ms)
	assert.Equal(t, 1, c.Notes[2].Lane)
}

func TestIDsAreNeverReused(t *testing.T) {
	c := testChart()
	added := c.Add(Note{Lane: 0, Type: Tap, Ms: 100})
	require.Equal(t, 1, c.Remove(added.ID))
	again := c.Add(Note{Lane: 0, Type: Tap, Ms: 100})
	assert.Greater(t, again.ID, added.ID)

	snap := c.Snapshot()
	c.Remove(again.ID)
	c.Restore(snap)
	assert.NotNil(t, c.Find(again.ID))
	third := c.Add(Note{Lane: 6, Type: Tap, Ms: 9000})
	assert.Greater(t, third.ID, again.ID)
}

func TestAddKeepsOrder(t *testing.T) {
	c := testChart()
	c.Add(Note{Lane: 0, Type: Tap, Ms: 600})
	c.Add(Note{Lane: 0, Type: Tap, Ms: 0})
	for i := 1; i < len(c.Notes); i++ {
		assert.LessOrEqual(t, c.Notes[i-1].Ms, c.Notes[i].Ms)
	}
	assert.Equal(t, int64(0), c.Notes[0].Ms)
}

func TestCloneIsIndependent(t *testing.T) {
	c := testChart()
	cl := c.Clone()
	cl.Notes[0].Status = Hit
	cl.Notes[0].Ms = 1
	assert.Equal(t, Pending, c.Notes[0].Status)
	assert.Equal(t, int64(500), c.Notes[0].Ms)
}

var conflictTests = []struct {
	a, b     Note
	conflict bool
}{
	{Note{Lane: 0, Ms: 100}, Note{Lane: 0, Ms: 150}, true},
	{Note{Lane: 0, Ms: 100}, Note{Lane: 0, Ms: 180}, false},
	{Note{Lane: 0, Ms: 100}, Note{Lane: 1, Ms: 100}, false},
	{Note{Lane: 2, Ms: 1500}, Note{Lane: 2, Type: Hold, Ms: 1000, EndMs: 2000}, true},
	{Note{Lane: 2, Ms: 2000}, Note{Lane: 2, Type: Hold, Ms: 1000, EndMs: 2000}, true},
	{Note{Lane: 2, Ms: 2001}, Note{Lane: 2, Type: Hold, Ms: 1000, EndMs: 2000}, false},
	{Note{Lane: 2, Type: Hold, Ms: 0, EndMs: 1000}, Note{Lane: 2, Type: Hold, Ms: 1000, EndMs: 2000}, true},
	{Note{Lane: 2, Type: Hold, Ms: 0, EndMs: 999}, Note{Lane: 2, Type: Hold, Ms: 1000, EndMs: 2000}, false},
}

func TestConflicts(t *testing.T) {
	for _, tt := range conflictTests {
		assert.Equal(t, tt.conflict, Conflicts(&tt.a, &tt.b, 80), "%v vs %v", tt.a, tt.b)
		assert.Equal(t, tt.conflict, Conflicts(&tt.b, &tt.a, 80), "%v vs %v", tt.b, tt.a)
	}
}

func TestCollisions(t *testing.T) {
	c := testChart()
	assert.Empty(t, c.Collisions(80))
	bad := c.Add(Note{Lane: 1, Type: Tap, Ms: 2500})
	pairs := c.Collisions(80)
	require.Len(t, pairs, 1)
	assert.Contains(t, pairs[0], bad.ID)
}

func TestDistance(t *testing.T) {
	h := Note{Type: Hold, Ms: 1000, EndMs: 2000}
	assert.Equal(t, int64(100), h.Distance(900))
	assert.Equal(t, int64(0), h.Distance(1500))
	assert.Equal(t, int64(50), h.Distance(2050))
	tp := Note{Ms: 1000}
	assert.Equal(t, int64(30), tp.Distance(1030))
}

func TestWindowAndDone(t *testing.T) {
	c := testChart()
	assert.Len(t, c.Window(2500, 2600), 2)
	assert.Len(t, c.Window(0, 600), 1)
	assert.False(t, c.Done())
	for _, n := range c.Notes {
		n.Status = Missed
	}
	assert.True(t, c.Done())
	assert.Equal(t, int64(3000), c.Last())
}
