// Package statement provides the immutable select, search and aggregate
// query builders.
//
// Each builder call returns a new statement and leaves its receiver
// untouched, so a statement can be prepared once and reused as a template:
//
//	base := statement.Select[Asset]().Where(expr.Col("space").In(spaces))
//	first := base.Limit(10)
//	next := first.Cursor(page.NextCursor)
//
// Values returns a snapshot of the accumulated configuration for the engine.
package statement
