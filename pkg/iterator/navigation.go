package iterator

import "cursordb/pkg/dberror"

// The helpers below implement the derived navigation methods of RowSource
// in terms of BeforeFirst, AfterLast, Next and Previous, for sources that
// have no faster way to do them.

// MoveFirst implements First.
func MoveFirst(src RowSource) (bool, error) {
	if err := src.BeforeFirst(); err != nil {
		return false, err
	}
	return src.Next()
}

// MoveLast implements Last.
func MoveLast(src RowSource) (bool, error) {
	if err := src.AfterLast(); err != nil {
		return false, err
	}
	return src.Previous()
}

// DrainForward steps src with Next until it passes the last row.
func DrainForward(src RowSource) error {
	for {
		ok, err := src.Next()
		if err != nil || !ok {
			return err
		}
	}
}

// MoveAbsolute implements Absolute by stepping from the closer boundary or
// from the current row.
func MoveAbsolute(src RowSource, n int) (bool, error) {
	switch {
	case n == 0:
		return false, src.BeforeFirst()
	case n < 0:
		if err := src.AfterLast(); err != nil {
			return false, err
		}
		for i := 0; i < -n; i++ {
			ok, err := src.Previous()
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	cur := src.Row()
	if cur <= 0 || cur > n {
		if err := src.BeforeFirst(); err != nil {
			return false, err
		}
		cur = 0
	}
	for ; cur < n; cur++ {
		ok, err := src.Next()
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// MoveRelative implements Relative.
func MoveRelative(src RowSource, k int) (bool, error) {
	ok := src.Row() != 0
	for ; k > 0; k-- {
		var err error
		if ok, err = src.Next(); err != nil || !ok {
			return false, err
		}
	}
	for ; k < 0; k++ {
		var err error
		if ok, err = src.Previous(); err != nil || !ok {
			return false, err
		}
	}
	return ok, nil
}

// ProbeIsLast implements IsLast for scrollable sources by stepping forward
// once and back again.
func ProbeIsLast(src RowSource) (bool, error) {
	if src.Row() == 0 {
		return false, nil
	}
	ok, err := src.Next()
	if err != nil {
		return false, err
	}
	if _, err := src.Previous(); err != nil {
		return false, err
	}
	return !ok, nil
}

// ErrForwardOnly is returned by forward-only sources for backward moves.
func ErrForwardOnly(op string) error {
	return dberror.InvalidArgument("%s: result set is forward only", op)
}

// AsWritable returns src's write capability or a READ_ONLY error.
func AsWritable(src RowSource, op string) (Writable, error) {
	if w, ok := src.(Writable); ok {
		return w, nil
	}
	return nil, dberror.ReadOnly(op)
}

// ForEach runs fn on every row of src from the first one. fn returning
// false stops early.
func ForEach(src RowSource, fn func() (bool, error)) error {
	if err := src.BeforeFirst(); err != nil {
		return err
	}
	for {
		ok, err := src.Next()
		if err != nil || !ok {
			return err
		}
		cont, err := fn()
		if err != nil || !cont {
			return err
		}
	}
}
