package iterator

import (
	"errors"
	"testing"

	"cursordb/pkg/dberror"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// sliceSource is a minimal scrollable source over a slice of ints.
type sliceSource struct {
	CursorState
	values []int64
	pos    int // index of the current value, -1 before first, len after last
}

func newSliceSource(values ...int64) *sliceSource {
	return &sliceSource{CursorState: NewCursorState(), values: values, pos: -1}
}

func (s *sliceSource) Execute() error                      { return s.BeforeFirst() }
func (s *sliceSource) TupleDesc() *tuple.TupleDescription { return nil }
func (s *sliceSource) IsScrollable() bool                  { return true }

func (s *sliceSource) BeforeFirst() error {
	s.pos = -1
	s.MovedBeforeFirst()
	return nil
}

func (s *sliceSource) AfterLast() error {
	s.pos = len(s.values)
	s.MovedAfterLast(len(s.values))
	return nil
}

func (s *sliceSource) Next() (bool, error) {
	if s.pos < len(s.values) {
		s.pos++
	}
	return s.MovedNext(s.pos < len(s.values)), nil
}

func (s *sliceSource) Previous() (bool, error) {
	if s.pos >= 0 {
		s.pos--
	}
	return s.MovedPrevious(s.pos >= 0), nil
}

func (s *sliceSource) First() (bool, error)         { return MoveFirst(s) }
func (s *sliceSource) Last() (bool, error)          { return MoveLast(s) }
func (s *sliceSource) Absolute(n int) (bool, error) { return MoveAbsolute(s, n) }
func (s *sliceSource) Relative(k int) (bool, error) { return MoveRelative(s, k) }
func (s *sliceSource) IsLast() (bool, error)        { return ProbeIsLast(s) }
func (s *sliceSource) RowInserted() bool            { return false }
func (s *sliceSource) RowDeleted() bool             { return false }

func (s *sliceSource) RowPosition() (int64, error) {
	if err := s.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	return int64(s.pos), nil
}

func (s *sliceSource) SetRowPosition(pos int64) error {
	s.pos = int(pos)
	s.MovedTo(s.pos + 1)
	return nil
}

func (s *sliceSource) Field(i int) (types.Field, error) {
	if err := s.RequireRow("Field"); err != nil {
		return nil, err
	}
	if s.IsNulled() {
		return nil, nil
	}
	return types.NewIntField(s.values[s.pos]), nil
}

func current(t *testing.T, s RowSource) int64 {
	t.Helper()
	f, err := s.Field(0)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	return f.(*types.IntField).Value
}

func TestCursorSymmetry(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		src := newSliceSource(10, 20, 30, 40, 50)
		if _, err := src.Absolute(2); err != nil {
			t.Fatal(err)
		}
		startRow := src.Row()
		startValue := current(t, src)

		moved := 0
		for i := 0; i < n; i++ {
			ok, _ := src.Next()
			if !ok {
				break
			}
			moved++
		}
		if moved < n {
			// the cursor ran past the end; one extra step back re-enters the last row
			src.Previous()
		}
		for i := 0; i < moved; i++ {
			src.Previous()
		}
		if src.Row() != startRow || current(t, src) != startValue {
			t.Errorf("n=%d: back at row %d value %d, want row %d value %d",
				n, src.Row(), current(t, src), startRow, startValue)
		}
	}
}

func TestBoundaryStates(t *testing.T) {
	src := newSliceSource(1, 2)
	if !src.IsBeforeFirst() || src.Row() != 0 {
		t.Fatal("new cursor should be before first with row 0")
	}
	if _, err := src.Field(0); !errors.Is(err, dberror.ErrNoCurrentRow) {
		t.Errorf("Field before first: got %v, want NO_CURRENT_ROW", err)
	}

	src.Next()
	src.Next()
	if ok, _ := src.Next(); ok {
		t.Fatal("Next past the end should report false")
	}
	if !src.IsAfterLast() || src.Row() != 0 || src.Count() != 2 {
		t.Errorf("after last: state=%v row=%d count=%d", src.CurrentState(), src.Row(), src.Count())
	}

	if ok, _ := src.Previous(); !ok || src.Row() != 2 {
		t.Errorf("Previous from after last: row %d", src.Row())
	}
	if last, _ := src.IsLast(); !last {
		t.Error("row 2 of 2 should be last")
	}
	if src.Row() != 2 {
		t.Errorf("IsLast moved the cursor to row %d", src.Row())
	}

	src.NoRow()
	if src.CurrentState() != StateNoRow || src.IsBeforeFirst() || src.IsAfterLast() {
		t.Error("NoRow should be distinct from both boundaries")
	}
}

func TestPreviousWithUnknownCountReportsUnknownRow(t *testing.T) {
	src := newSliceSource(1, 2, 3)
	if err := src.AfterLast(); err != nil {
		t.Fatal(err)
	}
	src.SetCount(-1)

	if ok, _ := src.Previous(); !ok || !src.OnRow() {
		t.Fatal("Previous from after last should land on a row")
	}
	if src.Row() != -1 || current(t, src) != 3 {
		t.Errorf("row %d value %d, want unknown row -1 on value 3", src.Row(), current(t, src))
	}
	src.Previous()
	if src.Row() != -1 || current(t, src) != 2 {
		t.Errorf("row %d value %d, want -1 on value 2", src.Row(), current(t, src))
	}

	if ok, _ := src.Absolute(2); !ok || src.Row() != 2 || current(t, src) != 2 {
		t.Errorf("Absolute(2) from an unknown row: row %d", src.Row())
	}
}

func TestRememberedRow(t *testing.T) {
	src := newSliceSource(1, 2, 3)
	src.Absolute(2)
	src.RememberRow(7)
	if n, err := src.RememberedRow(7); err != nil || n != 2 {
		t.Errorf("RememberedRow(7) = %d, %v", n, err)
	}
	if _, err := src.RememberedRow(8); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Errorf("RememberedRow(8): err = %v", err)
	}
}

func TestAbsoluteAndRelative(t *testing.T) {
	src := newSliceSource(1, 2, 3, 4)
	tests := []struct {
		name string
		move func() (bool, error)
		ok   bool
		row  int
	}{
		{"absolute 3", func() (bool, error) { return src.Absolute(3) }, true, 3},
		{"absolute -1", func() (bool, error) { return src.Absolute(-1) }, true, 4},
		{"relative -2", func() (bool, error) { return src.Relative(-2) }, true, 2},
		{"absolute 0", func() (bool, error) { return src.Absolute(0) }, false, 0},
		{"absolute 9", func() (bool, error) { return src.Absolute(9) }, false, 0},
		{"first", src.First, true, 1},
		{"relative 0", func() (bool, error) { return src.Relative(0) }, true, 1},
		{"last", src.Last, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.move()
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.ok || src.Row() != tt.row {
				t.Errorf("got ok=%v row=%d, want ok=%v row=%d", ok, src.Row(), tt.ok, tt.row)
			}
		})
	}
}

func TestNullRow(t *testing.T) {
	src := newSliceSource(7)
	src.Next()
	src.NullRow()
	if f, _ := src.Field(0); f != nil {
		t.Errorf("NullRow field = %v, want NULL", f)
	}
	if src.Row() != 1 {
		t.Error("NullRow must not move the cursor")
	}
	src.BeforeFirst()
	src.Next()
	if current(t, src) != 7 {
		t.Error("navigation should clear the NULL override")
	}
}

func TestRowPositionRoundTrip(t *testing.T) {
	src := newSliceSource(5, 6, 7)
	src.Absolute(2)
	pos, err := src.RowPosition()
	if err != nil {
		t.Fatal(err)
	}
	src.Last()
	if err := src.SetRowPosition(pos); err != nil {
		t.Fatal(err)
	}
	if current(t, src) != 6 {
		t.Errorf("restored value %d, want 6", current(t, src))
	}
}

func TestAsWritable(t *testing.T) {
	_, err := AsWritable(newSliceSource(), "UpdateRow")
	if !errors.Is(err, dberror.ErrReadOnly) {
		t.Errorf("got %v, want READ_ONLY", err)
	}
}

func TestForEachStopsEarly(t *testing.T) {
	src := newSliceSource(1, 2, 3, 4)
	var seen []int64
	err := ForEach(src, func() (bool, error) {
		seen = append(seen, current(t, src))
		return len(seen) < 2, nil
	})
	if err != nil || len(seen) != 2 {
		t.Errorf("seen %v err %v", seen, err)
	}
}

func TestPositionTable(t *testing.T) {
	type pair struct{ l, r int64 }
	pt := NewPositionTable[pair]()
	a := pt.Put(pair{1, 2})
	b := pt.Put(pair{3, 4})
	if again := pt.Put(pair{1, 2}); again != a {
		t.Errorf("same key got position %d, want %d", again, a)
	}
	if a == b {
		t.Error("distinct keys share a position")
	}
	if got, ok := pt.Get(b); !ok || got != (pair{3, 4}) {
		t.Errorf("Get(%d) = %v, %v", b, got, ok)
	}
	pt.Reset()
	if _, ok := pt.Get(a); ok || pt.Len() != 0 {
		t.Error("Reset should forget every position")
	}
}
