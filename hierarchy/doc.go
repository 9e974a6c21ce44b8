// Package hierarchy implements the logger tree.
//
// Logger names are hierarchical: "app.db.pool" (or "app::db::pool") has
// the implicit ancestors "app.db" and "app", and every name descends from
// the unnamed root. A Builder collects NodeSpecs and freezes them into an
// immutable Tree backed by go-immutable-radix, so reconfiguration builds a
// new tree instead of mutating a shared one.
//
// Tree.Resolve walks from a target up to the root:
//
//   - the effective level is the nearest explicit level;
//   - the effective filters are the nearest explicit filter list;
//   - the effective appenders are the union of explicit appender lists,
//     nearest first and without duplicates, stopping after the first
//     non-additive node that defines a list. The root always contributes
//     unless such a node was found.
//
// A node with an empty list and Additive=true still inherits its
// ancestors' appenders; only Additive=false with an empty list silences a
// subtree.
//
// Results are memoized per target in the tree, up to DefaultCacheSize
// targets (see Builder.SetCacheSize). The cache lives and dies with the
// tree, so there is nothing to invalidate.
package hierarchy
