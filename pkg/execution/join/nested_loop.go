package join

import (
	"fmt"

	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
)

type phase int

const (
	scanLeft    phase = iota // pairing left rows with right rows
	replayRight              // FULL/RIGHT: emitting right rows never matched
	done
)

// loopState is everything needed to resume the nested loop from a row.
type loopState struct {
	row         int
	phase       phase
	leftPos     int64
	rightPos    int64
	rightIdx    int
	leftOn      bool
	leftMatched bool
	leftNull    bool
	rightNull   bool
}

// NestedLoopJoin joins every left row with every right row and keeps the
// pairs for which the condition holds.
//
//   - CROSS never filters.
//   - INNER emits matching pairs only.
//   - LEFT additionally emits a left row once with the right side NULL when
//     no right row matched it.
//   - FULL records, per right row, whether any left row matched it. Once the
//     left side is exhausted a second pass over the right child emits every
//     unmatched right row with the left side NULL. An empty left side still
//     drains the right side once.
//   - RIGHT runs the FULL machinery without the unmatched left rows.
type NestedLoopJoin struct {
	pair
	kind Kind
	cond expr.Expr

	phase       phase
	leftOn      bool // a left row is being paired
	leftMatched bool // the current left row matched at least one right row
	rightIdx    int  // index of the right row within the current right scan
	matched     []bool
	positions   *iterator.PositionTable[loopState]
}

// NewNestedLoopJoin binds cond against the combined schema of left and
// right. cond must be nil for CROSS and may be nil for the other kinds,
// which then behave like CROSS with outer bookkeeping.
func NewNestedLoopJoin(kind Kind, left, right iterator.RowSource, cond expr.Expr) (*NestedLoopJoin, error) {
	p, err := newPair(left, right)
	if err != nil {
		return nil, err
	}
	if kind == Cross && cond != nil {
		return nil, fmt.Errorf("CROSS JOIN takes no condition")
	}
	if cond != nil {
		if err := cond.Bind(p.td); err != nil {
			return nil, fmt.Errorf("binding join condition %s: %w", cond, err)
		}
	}
	return &NestedLoopJoin{
		pair:      p,
		kind:      kind,
		cond:      cond,
		positions: iterator.NewPositionTable[loopState](),
	}, nil
}

// Kind returns the join kind.
func (j *NestedLoopJoin) Kind() Kind { return j.kind }

func (j *NestedLoopJoin) tracksRight() bool { return j.kind == Full || j.kind == Right }

func (j *NestedLoopJoin) Execute() error {
	if err := j.left.Execute(); err != nil {
		return err
	}
	if err := j.right.Execute(); err != nil {
		return err
	}
	j.positions.Reset()
	j.ResetState()
	return j.BeforeFirst()
}

func (j *NestedLoopJoin) BeforeFirst() error {
	if err := j.left.BeforeFirst(); err != nil {
		return err
	}
	j.phase = scanLeft
	j.leftOn, j.leftMatched = false, false
	j.leftNull, j.rightNull = false, false
	j.rightIdx = -1
	j.matched = j.matched[:0]
	j.MovedBeforeFirst()
	return nil
}

func (j *NestedLoopJoin) AfterLast() error            { return afterLast(j) }
func (j *NestedLoopJoin) First() (bool, error)         { return iterator.MoveFirst(j) }
func (j *NestedLoopJoin) Absolute(n int) (bool, error) { return absolute(j, n) }
func (j *NestedLoopJoin) Relative(k int) (bool, error) { return relative(j, k) }

func (j *NestedLoopJoin) markMatched(i int) {
	for len(j.matched) <= i {
		j.matched = append(j.matched, false)
	}
	j.matched[i] = true
}

func (j *NestedLoopJoin) holds() (bool, error) {
	if j.cond == nil {
		return true, nil
	}
	j.leftNull, j.rightNull = false, false
	return expr.Bool(j.cond, candidate{&j.pair})
}

// Next advances to the next joined row.
func (j *NestedLoopJoin) Next() (bool, error) {
	ok, err := j.advance()
	if err != nil {
		return false, err
	}
	return j.MovedNext(ok), nil
}

func (j *NestedLoopJoin) advance() (bool, error) {
	for {
		switch j.phase {
		case done:
			return false, nil

		case replayRight:
			ok, err := j.right.Next()
			if err != nil {
				return false, err
			}
			if !ok {
				j.phase = done
				logging.Debug("nested loop join finished", "kind", j.kind)
				return false, nil
			}
			j.rightIdx++
			if j.rightIdx < len(j.matched) && j.matched[j.rightIdx] {
				continue
			}
			j.left.NoRow()
			j.leftNull, j.rightNull = true, false
			return true, nil

		case scanLeft:
			if !j.leftOn {
				ok, err := j.left.Next()
				if err != nil {
					return false, err
				}
				if !ok {
					if j.tracksRight() {
						if err := j.right.BeforeFirst(); err != nil {
							return false, err
						}
						j.rightIdx = -1
						j.phase = replayRight
					} else {
						j.phase = done
					}
					continue
				}
				if err := j.right.BeforeFirst(); err != nil {
					return false, err
				}
				j.leftOn, j.leftMatched, j.rightIdx = true, false, -1
			}

			ok, err := j.right.Next()
			if err != nil {
				return false, err
			}
			if ok {
				j.rightIdx++
				match, err := j.holds()
				if err != nil {
					return false, err
				}
				if !match {
					continue
				}
				j.leftMatched = true
				if j.tracksRight() {
					j.markMatched(j.rightIdx)
				}
				j.leftNull, j.rightNull = false, false
				return true, nil
			}

			j.leftOn = false
			if (j.kind == Left || j.kind == Full) && !j.leftMatched {
				j.right.NoRow()
				j.leftNull, j.rightNull = false, true
				return true, nil
			}
		}
	}
}

func (j *NestedLoopJoin) state() (loopState, error) {
	lp, err := childPosition(j.left, j.leftNull)
	if err != nil {
		return loopState{}, err
	}
	rp, err := childPosition(j.right, j.rightNull)
	if err != nil {
		return loopState{}, err
	}
	return loopState{
		row:         j.Row(),
		phase:       j.phase,
		leftPos:     lp,
		rightPos:    rp,
		rightIdx:    j.rightIdx,
		leftOn:      j.leftOn,
		leftMatched: j.leftMatched,
		leftNull:    j.leftNull,
		rightNull:   j.rightNull,
	}, nil
}

func (j *NestedLoopJoin) RowPosition() (int64, error) {
	if err := j.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	st, err := j.state()
	if err != nil {
		return 0, err
	}
	return j.positions.Put(st), nil
}

// SetRowPosition restores the row and the loop state it was produced in, so
// that Next resumes from there.
func (j *NestedLoopJoin) SetRowPosition(pos int64) error {
	st, ok := j.positions.Get(pos)
	if !ok {
		return fmt.Errorf("unknown join row position %d", pos)
	}
	if err := restoreChild(j.left, st.leftPos); err != nil {
		return err
	}
	if err := restoreChild(j.right, st.rightPos); err != nil {
		return err
	}
	j.phase, j.rightIdx = st.phase, st.rightIdx
	j.leftOn, j.leftMatched = st.leftOn, st.leftMatched
	j.leftNull, j.rightNull = st.leftNull, st.rightNull
	j.MovedTo(st.row)
	return nil
}
