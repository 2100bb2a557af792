// Package searcher provides pooled scratch state for graph traversal.
//
// A Searcher owns the exploration heap, the bounded result heap, the visited
// set and the per-query counters. Searchers are pooled so steady-state
// queries do not allocate.
package searcher
