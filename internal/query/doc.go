// Package query compiles declarative parameter records into statements.
//
// A Declaration lists named attributes, each bound to a role:
//
//	var assetQuery = query.MustDeclare(
//		query.Param("externalIdIn", "externalId", "in"),
//		query.Param("nameEq", "name", "eq"),
//		query.Sort("sortBy", statement.Ascending),
//		query.Bool("or", expr.BoolOr),
//	)
//
// A Record binds values to some of those attributes. ToStatement emits one
// filter per bound parameter (implicitly and-ed, in declaration order), one
// combinator per bound bool attribute (its nested record compiled
// recursively) and one sort clause per bound sort attribute, whose value is
// the property to sort by.
package query
