package rle

import (
	"reflect"
	"testing"
)

type recorder struct {
	events []Event
}

func (r *recorder) Emit(ev Event) { r.events = append(r.events, ev) }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]uint8{
		{},
		{5},
		{5, 5, 5},
		{0, 0, 0, 0, 0},
		{1, 2, 3, 3, 3, 3, 3, 3, 3, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		make([]uint8, 300), // long zero run spanning multiple symbol-18 groups
	}
	for ci, lengths := range cases {
		rec := &recorder{}
		Encode(lengths, rec)

		// Replay the recorded events through Decode's state machine by
		// driving a fake bit reader fed from Extra fields directly and
		// a symbol source fed from the recorded events.
		idx := 0
		fakeBR := fakeReader{events: rec.events, extraOf: func(ev Event) (int, uint64) {
			switch ev.Sym {
			case SymRepeat:
				return 2, uint64(ev.Extra)
			case SymZeros3:
				return 3, uint64(ev.Extra)
			case SymZeros11:
				return 7, uint64(ev.Extra)
			}
			return 0, 0
		}}
		decodeSym := func() (int, error) {
			sym := rec.events[idx].Sym
			fakeBR.cur = idx
			idx++
			return sym, nil
		}

		got, err := Decode(&fakeBR, len(lengths), decodeSym)
		if err != nil {
			t.Fatalf("case %d: %v", ci, err)
		}
		if !reflect.DeepEqual(got, lengths) {
			if len(lengths) == 0 && len(got) == 0 {
				continue
			}
			t.Fatalf("case %d: got %v want %v", ci, got, lengths)
		}
	}
}

// fakeReader replays the extra-bits value of the event Decode most
// recently asked the symbol source for, standing in for a real
// bitio.Reader in this unit test.
type fakeReader struct {
	events  []Event
	cur     int
	extraOf func(Event) (int, uint64)
}

func (f *fakeReader) ReadBits(n int) uint64 {
	_, v := f.extraOf(f.events[f.cur])
	return v
}
