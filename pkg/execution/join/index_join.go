package join

import (
	"fmt"

	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/trie"
	"cursordb/pkg/types"
)

type probeState struct {
	row      int
	leftPos  int64
	matchIdx int
}

// IndexJoin is an INNER equi-join. Execute indexes the right child on its
// key expressions in a transient non-unique index; each left row then
// probes the index with its own key values and is paired with every match.
// NULL keys never match.
type IndexJoin struct {
	pair
	leftKeys, rightKeys []expr.Expr

	index     *trie.Index
	leftOn    bool
	matches   []int64
	matchIdx  int
	positions *iterator.PositionTable[probeState]
}

// NewIndexJoin pairs leftKeys[i] = rightKeys[i]. The keys are bound against
// the schema of their own child.
func NewIndexJoin(left, right iterator.RowSource, leftKeys, rightKeys []expr.Expr) (*IndexJoin, error) {
	p, err := newPair(left, right)
	if err != nil {
		return nil, err
	}
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, fmt.Errorf("index join needs matching key lists, got %d and %d", len(leftKeys), len(rightKeys))
	}
	if err := expr.BindAll(left.TupleDesc(), leftKeys...); err != nil {
		return nil, err
	}
	if err := expr.BindAll(right.TupleDesc(), rightKeys...); err != nil {
		return nil, err
	}
	return &IndexJoin{
		pair:      p,
		leftKeys:  leftKeys,
		rightKeys: rightKeys,
		positions: iterator.NewPositionTable[probeState](),
	}, nil
}

func (j *IndexJoin) Execute() error {
	if err := j.left.Execute(); err != nil {
		return err
	}
	if err := j.right.Execute(); err != nil {
		return err
	}

	keyTypes := make([]types.Type, len(j.rightKeys))
	for i, k := range j.rightKeys {
		keyTypes[i] = k.ResultType()
	}
	j.index = trie.NewIndex("join", false, len(j.rightKeys), keyTypes)
	rows := 0
	err := iterator.ForEach(j.right, func() (bool, error) {
		keys, err := expr.EvalAll(j.right, j.rightKeys)
		if err != nil || hasNull(keys) {
			return err == nil, err
		}
		pos, err := j.right.RowPosition()
		if err != nil {
			return false, err
		}
		rows++
		return true, j.index.AddValues(pos, keys)
	})
	if err != nil {
		return fmt.Errorf("building join index: %w", err)
	}
	logging.Debug("join index built", "rows", rows, "keys", len(j.rightKeys))

	j.positions.Reset()
	j.ResetState()
	return j.BeforeFirst()
}

func hasNull(keys []types.Field) bool {
	for _, k := range keys {
		if k == nil {
			return true
		}
	}
	return false
}

func (j *IndexJoin) BeforeFirst() error {
	if err := j.left.BeforeFirst(); err != nil {
		return err
	}
	j.leftOn, j.matches, j.matchIdx = false, nil, -1
	j.MovedBeforeFirst()
	return nil
}

func (j *IndexJoin) AfterLast() error            { return afterLast(j) }
func (j *IndexJoin) First() (bool, error)         { return iterator.MoveFirst(j) }
func (j *IndexJoin) Absolute(n int) (bool, error) { return absolute(j, n) }
func (j *IndexJoin) Relative(k int) (bool, error) { return relative(j, k) }

// probe looks up the matches of the current left row.
func (j *IndexJoin) probe() error {
	j.matches, j.matchIdx = nil, -1
	keys, err := expr.EvalAll(j.left, j.leftKeys)
	if err != nil || hasNull(keys) {
		return err
	}
	j.matches, err = j.index.FindRows(keys, false)
	return err
}

func (j *IndexJoin) Next() (bool, error) {
	if j.IsAfterLast() {
		return false, nil
	}
	for {
		if j.leftOn && j.matchIdx+1 < len(j.matches) {
			j.matchIdx++
			if err := j.right.SetRowPosition(j.matches[j.matchIdx]); err != nil {
				return false, err
			}
			return j.MovedNext(true), nil
		}

		ok, err := j.left.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			j.leftOn = false
			return j.MovedNext(false), nil
		}
		j.leftOn = true
		if err := j.probe(); err != nil {
			return false, err
		}
	}
}

func (j *IndexJoin) RowPosition() (int64, error) {
	if err := j.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	lp, err := j.left.RowPosition()
	if err != nil {
		return 0, err
	}
	return j.positions.Put(probeState{row: j.Row(), leftPos: lp, matchIdx: j.matchIdx}), nil
}

func (j *IndexJoin) SetRowPosition(pos int64) error {
	st, ok := j.positions.Get(pos)
	if !ok {
		return fmt.Errorf("unknown join row position %d", pos)
	}
	if err := j.left.SetRowPosition(st.leftPos); err != nil {
		return err
	}
	if err := j.probe(); err != nil {
		return err
	}
	if st.matchIdx >= len(j.matches) {
		return fmt.Errorf("join row position %d no longer matches", pos)
	}
	j.leftOn, j.matchIdx = true, st.matchIdx
	if err := j.right.SetRowPosition(j.matches[j.matchIdx]); err != nil {
		return err
	}
	j.MovedTo(st.row)
	return nil
}
