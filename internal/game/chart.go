package game

import "sort"

type Chart struct {
	Notes      []*Note
	Difficulty Difficulty

	nextID NoteID
}

// NewChart takes ownership of notes, assigning ids to any note without one
// and sorting them.
func NewChart(d Difficulty, notes []Note) *Chart {
	c := &Chart{Difficulty: d, Notes: make([]*Note, 0, len(notes))}
	for i := range notes {
		if notes[i].ID > c.nextID {
			c.nextID = notes[i].ID
		}
	}
	for i := range notes {
		n := notes[i]
		if n.ID == 0 {
			c.nextID++
			n.ID = c.nextID
		}
		n.Reset()
		c.Notes = append(c.Notes, &n)
	}
	c.Sort()
	return c
}

// Sort orders notes by time, then lane, then id. Judgement relies on this
// order to stop scanning once distances start growing.
func (c *Chart) Sort() {
	sort.SliceStable(c.Notes, func(i, j int) bool {
		a, b := c.Notes[i], c.Notes[j]
		if a.Ms != b.Ms {
			return a.Ms < b.Ms
		}
		if a.Lane != b.Lane {
			return a.Lane < b.Lane
		}
		return a.ID < b.ID
	})
}

// Add inserts a copy of n with a fresh id and returns the stored note.
func (c *Chart) Add(n Note) *Note {
	c.nextID++
	n.ID = c.nextID
	n.Reset()
	note := &n
	i := sort.Search(len(c.Notes), func(i int) bool {
		o := c.Notes[i]
		return o.Ms > n.Ms || (o.Ms == n.Ms && o.Lane > n.Lane)
	})
	c.Notes = append(c.Notes, nil)
	copy(c.Notes[i+1:], c.Notes[i:])
	c.Notes[i] = note
	return note
}

// Remove deletes the notes with the given ids and returns how many were found.
func (c *Chart) Remove(ids ...NoteID) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[NoteID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.Notes[:0]
	removed := 0
	for _, n := range c.Notes {
		if _, ok := drop[n.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(c.Notes); i++ {
		c.Notes[i] = nil
	}
	c.Notes = kept
	return removed
}

func (c *Chart) Find(id NoteID) *Note {
	for _, n := range c.Notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Snapshot copies every note by value.
func (c *Chart) Snapshot() []Note {
	out := make([]Note, len(c.Notes))
	for i, n := range c.Notes {
		out[i] = *n
	}
	return out
}

// Restore replaces the note list with a snapshot. Ids are kept as they were
// and the allocator never moves backwards.
func (c *Chart) Restore(notes []Note) {
	c.Notes = make([]*Note, len(notes))
	for i := range notes {
		n := notes[i]
		if n.ID > c.nextID {
			c.nextID = n.ID
		}
		c.Notes[i] = &n
	}
	c.Sort()
}

// Clone is a deep copy sharing nothing with c, including the id allocator.
func (c *Chart) Clone() *Chart {
	cl := &Chart{Difficulty: c.Difficulty, nextID: c.nextID}
	cl.Restore(c.Snapshot())
	return cl
}

// Counts returns the number of taps and holds.
func (c *Chart) Counts() (taps, holds int) {
	for _, n := range c.Notes {
		if n.IsHold() {
			holds++
		} else {
			taps++
		}
	}
	return
}

// Last is the final instant covered by any note.
func (c *Chart) Last() int64 {
	var last int64
	for _, n := range c.Notes {
		if e := n.End(); e > last {
			last = e
		}
	}
	return last
}

// Window returns the notes whose span intersects [from, to].
func (c *Chart) Window(from, to int64) []*Note {
	out := []*Note{}
	for _, n := range c.Notes {
		if n.Ms > to {
			break
		}
		if n.End() >= from {
			out = append(out, n)
		}
	}
	return out
}

// Collisions lists every pair of notes breaking the lane overlap rules.
func (c *Chart) Collisions(dedupe int64) [][2]NoteID {
	pairs := [][2]NoteID{}
	for i, a := range c.Notes {
		for _, b := range c.Notes[i+1:] {
			if b.Ms > a.End()+dedupe {
				break
			}
			if Conflicts(a, b, dedupe) {
				pairs = append(pairs, [2]NoteID{a.ID, b.ID})
			}
		}
	}
	return pairs
}

// Done reports whether every note has reached a terminal status.
func (c *Chart) Done() bool {
	for _, n := range c.Notes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}

// Lane returns the notes in lane l, in chart order.
func (c *Chart) Lane(l int) []*Note {
	out := []*Note{}
	for _, n := range c.Notes {
		if n.Lane == l {
			out = append(out, n)
		}
	}
	return out
}
