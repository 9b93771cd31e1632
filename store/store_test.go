package store

import (
	"io"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func cursorKeys(t *testing.T, s *Store, start *uint64, forward bool) []uint64 {
	t.Helper()
	var startRec Record
	if start != nil {
		startRec = uint64Record{key: *start}
	}
	c, err := s.Cursor(startRec)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	var got []uint64
	for {
		var rec Record
		var ok bool
		if forward {
			rec, ok, err = c.Next()
		} else {
			rec, ok, err = c.Prev()
		}
		if err != nil {
			t.Fatalf("cursor step: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, rec.(uint64Record).key)
	}
	return got
}

// TestStoreOrderedInsert checks ordered traversal of a small
// unordered insert sequence, in both directions.
func TestStoreOrderedInsert(t *testing.T) {
	s := newTestStore(4096)
	for _, k := range []uint64{5, 2, 8, 1, 9, 4, 7, 3, 6} {
		if err := s.Insert(uint64Record{key: k, value: k * 10}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	zero := uint64(0)
	fwd := cursorKeys(t, s, &zero, true)
	wantFwd := []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if diff := cmp.Diff(wantFwd, fwd); diff != "" {
		t.Errorf("forward cursor from 0 mismatch (-want +got):\n%s", diff)
	}

	ten := uint64(10)
	bwd := cursorKeys(t, s, &ten, false)
	wantBwd := []uint64{9, 8, 7, 6, 5, 4, 3, 2, 1}
	if diff := cmp.Diff(wantBwd, bwd); diff != "" {
		t.Errorf("backward cursor from 10 mismatch (-want +got):\n%s", diff)
	}
}

// TestStoreShuffledInsertRemoveOdds inserts shuffled keys, removes
// the odd ones, and checks the survivors come back in order. 2000
// keys keeps the test fast while still forcing many page splits.
func TestStoreShuffledInsertRemoveOdds(t *testing.T) {
	const n = 2000
	s := newTestStore(4096)

	order := rand.New(rand.NewSource(1)).Perm(n)
	for _, k := range order {
		if err := s.Insert(uint64Record{key: uint64(k), value: uint64(k)}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	for k := 1; k < n; k += 2 {
		if err := s.Remove(uint64Record{key: uint64(k)}); err != nil {
			t.Fatalf("Remove(%d): %v", k, err)
		}
	}

	got := cursorKeys(t, s, nil, true)
	want := make([]uint64, 0, n/2)
	for k := 0; k < n; k += 2 {
		want = append(want, uint64(k))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("post-removal cursor mismatch (-want +got):\n%s", diff)
	}
}

// TestStoreRemoveMissingIsNoop checks that removing an absent key
// leaves the tree untouched.
func TestStoreRemoveMissingIsNoop(t *testing.T) {
	s := newTestStore(4096)
	for _, k := range []uint64{1, 2, 3} {
		if err := s.Insert(uint64Record{key: k}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Remove(uint64Record{key: 99}); err != nil {
		t.Fatalf("Remove(missing): %v", err)
	}
	got := cursorKeys(t, s, nil, true)
	if diff := cmp.Diff([]uint64{1, 2, 3}, got); diff != "" {
		t.Errorf("tree changed after removing a missing key (-want +got):\n%s", diff)
	}
}

// TestStoreDuplicateInsertIsNoop checks that re-inserting an
// existing key neither duplicates it nor overwrites its value.
func TestStoreDuplicateInsertIsNoop(t *testing.T) {
	s := newTestStore(4096)
	if err := s.Insert(uint64Record{key: 1, value: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(uint64Record{key: 1, value: 200}); err != nil {
		t.Fatal(err)
	}
	n, err := s.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Len() = %d, want 1", n)
	}
	c, err := s.Cursor(nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok, err := c.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", rec, ok, err)
	}
	if v := rec.(uint64Record).value; v != 100 {
		t.Fatalf("value = %d, want 100 (duplicate insert overwrote it)", v)
	}
}

// TestStoreRoundTrip saves, drops all in-memory state, reopens, and
// checks a cursor reproduces the same ordered record sequence.
func TestStoreRoundTrip(t *testing.T) {
	const n = 1500
	backing := NewMemoryBacking()
	s := func() *Store {
		s, err := New(backing, uint64Codec{}, 4096)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}()

	order := rand.New(rand.NewSource(7)).Perm(n)
	for _, k := range order {
		if err := s.Insert(uint64Record{key: uint64(k), value: uint64(k) * 2}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := Open(backing, uint64Codec{}, 4096)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := cursorKeys(t, reopened, nil, true)
	want := make([]uint64, n)
	for i := range want {
		want[i] = uint64(i)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip cursor mismatch (-want +got):\n%s", diff)
	}
}

// TestStoreTinyPagesDeepTree runs a mixed insert/remove workload with
// pages small enough that the page tree grows several parent levels,
// checking the cursor against a plain map after every phase and across
// a save/reopen.
func TestStoreTinyPagesDeepTree(t *testing.T) {
	const pageSize = 256
	backing := NewMemoryBacking()
	s, err := New(backing, uint64Codec{}, pageSize)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(11))
	model := map[uint64]bool{}
	for step := 0; step < 3000; step++ {
		k := uint64(rng.Intn(500))
		if rng.Intn(100) < 65 {
			if err := s.Insert(uint64Record{key: k, value: k + 1}); err != nil {
				t.Fatalf("Insert(%d): %v", k, err)
			}
			model[k] = true
		} else {
			if err := s.Remove(uint64Record{key: k}); err != nil {
				t.Fatalf("Remove(%d): %v", k, err)
			}
			delete(model, k)
		}
	}

	want := make([]uint64, 0, len(model))
	for k := range model {
		want = append(want, k)
	}
	slices.Sort(want)

	if diff := cmp.Diff(want, cursorKeys(t, s, nil, true)); diff != "" {
		t.Errorf("forward cursor mismatch (-want +got):\n%s", diff)
	}
	bwd := cursorKeys(t, s, nil, false)
	slices.Reverse(bwd)
	if diff := cmp.Diff(want, bwd); diff != "" {
		t.Errorf("backward cursor mismatch (-want +got):\n%s", diff)
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reopened, err := Open(backing, uint64Codec{}, pageSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if diff := cmp.Diff(want, cursorKeys(t, reopened, nil, true)); diff != "" {
		t.Errorf("reopened cursor mismatch (-want +got):\n%s", diff)
	}
	if err := reopened.Dump(io.Discard); err != nil {
		t.Fatalf("Dump: %v", err)
	}
}

// TestStoreCursorStartBetweenKeys positions cursors on a key that is
// not present, in both directions.
func TestStoreCursorStartBetweenKeys(t *testing.T) {
	s := newTestStore(256)
	for k := uint64(0); k < 100; k += 2 {
		if err := s.Insert(uint64Record{key: k, value: k}); err != nil {
			t.Fatal(err)
		}
	}
	start := uint64(31)
	fwd := cursorKeys(t, s, &start, true)
	if len(fwd) == 0 || fwd[0] != 32 {
		t.Fatalf("forward cursor from 31 starts at %v, want 32", fwd[:min(len(fwd), 3)])
	}
	bwd := cursorKeys(t, s, &start, false)
	if len(bwd) == 0 || bwd[0] != 30 {
		t.Fatalf("backward cursor from 31 starts at %v, want 30", bwd[:min(len(bwd), 3)])
	}
}

func TestStoreLenEmpty(t *testing.T) {
	s := newTestStore(4096)
	n, err := s.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Len() = %d, want 0", n)
	}
}
