package store

import "testing"

func TestPackHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		parentFlag                     bool
		root, count, freeHead, allocHi uint16
	}{
		{false, 0, 0, 0, 0},
		{true, 2047, 2047, 2047, 2047},
		{false, 1, 500, 3, 500},
	}
	buf := make([]byte, headerSize)
	for _, c := range cases {
		packHeader(buf, c.parentFlag, c.root, c.count, c.freeHead, c.allocHi)
		gotParent, gotRoot, gotCount, gotFree, gotAlloc := unpackHeader(buf)
		if gotParent != c.parentFlag || gotRoot != c.root || gotCount != c.count || gotFree != c.freeHead || gotAlloc != c.allocHi {
			t.Errorf("packHeader(%+v) round-trip = (%v,%d,%d,%d,%d)", c, gotParent, gotRoot, gotCount, gotFree, gotAlloc)
		}
	}
}

func TestPackNodeRoundTrip(t *testing.T) {
	buf := make([]byte, 3)
	for _, b := range []balance{balanceLeftHigher, balanceBalanced, balanceRightHigher} {
		for _, left := range []uint16{0, 1, 2047} {
			for _, right := range []uint16{0, 1, 2047} {
				packNode(buf, 0, b, left, right)
				gotB, gotL, gotR := unpackNode(buf, 0)
				if gotB != b || gotL != left || gotR != right {
					t.Errorf("packNode(%v,%d,%d) round-trip = (%v,%d,%d)", b, left, right, gotB, gotL, gotR)
				}
			}
		}
	}
}

func TestPackChildPtrRoundTrip(t *testing.T) {
	buf := make([]byte, childPtrSize)
	for _, v := range []uint64{0, 1, 0xffffffffffff} {
		packChildPtr(buf, 0, v)
		if got := unpackChildPtr(buf, 0); got != v {
			t.Errorf("packChildPtr(%d) round-trip = %d", v, got)
		}
	}
}
