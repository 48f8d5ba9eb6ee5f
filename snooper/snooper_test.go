package snooper

import (
	"testing"

	"github.com/baljemmett/ttymatrix/keys"
)

// released is the active-high "nothing pressed on this row" reading.
var released = row{col0: 0, col1: 0}

// strobeFrame feeds a full 8-row frame to s. active overrides the
// active-high column reading for specific rows; rows not present in active
// are reported as fully released. Values are expressed active-high (bit
// set = key down) and translated to the bus's raw active-low form before
// being handed to Strobe, mirroring what real hardware would present.
func strobeFrame(s *Snooper, active map[int]row) {
	for r := 0; r < 8; r++ {
		c := released
		if v, ok := active[r]; ok {
			c = v
		}
		s.Strobe(^byte(1<<uint(r)), ^c.col0, ^c.col1&idleCol1)
	}
}

// strobeGhost feeds a hardware "ghost" reading (both column bytes floating)
// for row r, and a released reading for every other row.
func strobeGhost(s *Snooper, r int) {
	for row := 0; row < 8; row++ {
		if row == r {
			s.Strobe(^byte(1<<uint(row)), 0xff, idleCol1)
			continue
		}
		s.Strobe(^byte(1<<uint(row)), ^released.col0, ^released.col1&idleCol1)
	}
}

func TestSingleKeyDownAndUp(t *testing.T) {
	s := New()

	// KeyColon sits at row 0, column 6 (see keys.rowKeyIDs).
	strobeFrame(s, map[int]row{0: {col0: 1 << 6}})
	s.Update()

	ev, ok := s.Queue.Pop()
	if !ok {
		t.Fatal("expected a queued event for key-down")
	}
	if !ev.IsDown() || ev.Key() != keys.KeyColon {
		t.Fatalf("got %v down=%v, want KeyColon down=true", ev.Key(), ev.IsDown())
	}

	strobeFrame(s, nil)
	s.Update()

	ev, ok = s.Queue.Pop()
	if !ok {
		t.Fatal("expected a queued event for key-up")
	}
	if ev.IsDown() || ev.Key() != keys.KeyColon {
		t.Fatalf("got %v down=%v, want KeyColon down=false", ev.Key(), ev.IsDown())
	}
}

func TestReleasedFrameGeneratesNoEvents(t *testing.T) {
	s := New()

	strobeFrame(s, nil)
	s.Update()

	if _, ok := s.Queue.Pop(); ok {
		t.Fatal("an all-released frame should not generate any events")
	}
}

func TestGhostRowSuppressesRelease(t *testing.T) {
	s := New()

	strobeFrame(s, map[int]row{0: {col0: 1 << 6}})
	s.Update()
	if _, ok := s.Queue.Pop(); !ok {
		t.Fatal("expected the initial key-down to be queued")
	}

	// Row 0 reads back as ghosted; the still-down key must not be reported
	// as released.
	strobeGhost(s, 0)
	s.Update()

	if _, ok := s.Queue.Pop(); ok {
		t.Fatal("a ghosted row must not generate a release event")
	}
}

func TestIncompleteFrameDoesNotDrain(t *testing.T) {
	s := New()

	// Only strobe 4 of 8 rows; Update must not fire until all 8 arrive.
	for r := 0; r < 4; r++ {
		s.Strobe(^byte(1<<uint(r)), 0xff, idleCol1)
	}
	s.Update()

	if _, ok := s.Queue.Pop(); ok {
		t.Fatal("partial frame should not drain")
	}
}
