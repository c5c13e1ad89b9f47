// Package execution holds the relational operators of cursordb. Every
// operator is an iterator.RowSource built over one or more child sources, so
// operators compose into a tree whose root is handed to the caller as a
// scrollable result.
//
// # Sub-packages
//
//   - [cursordb/pkg/execution/join]        – nested-loop joins of every kind,
//     the index-assisted equi-join and the planner choosing between them.
//   - [cursordb/pkg/execution/aggregation] – GROUP BY and aggregate queries.
//   - [cursordb/pkg/execution/setops]      – DISTINCT and UNION ALL.
//
// This package holds the single-input operators: Where, Projection, View and
// SortedResult, the MemoryResult of materialized rows, and the
// ScrollableAdapter that makes forward-only operators scrollable.
//
// # Positions
//
// Every operator hands out row positions that restore the same logical row
// for the lifetime of one Execute call. Operators over one child reuse the
// child's positions; operators that combine children number their rows
// through an iterator.PositionTable.
package execution
