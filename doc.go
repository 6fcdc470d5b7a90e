// Package hmap provides Map, a single-writer hash map whose buckets start as
// singly linked chains and turn into red-black trees once they grow large.
//
// Key features of hmap.Map:
//   - Amortized O(1) Get/Put/Remove, O(log n) worst case for colliding keys
//   - Power-of-two table that doubles by splitting every bucket into a
//     "lo" and a "hi" half using one extra hash bit, without rehashing
//   - Entries live in an arena and are addressed by stable handles, so
//     treeify, untreeify and resize never move an entry
//   - Fail-fast iterators and views driven by a structural generation counter
//   - Spliterator for divide-and-conquer traversal and ParallelRange on top of it
//   - Injectable Hooks (after access, insert and remove); LinkedMap is built on them
//   - gob and JSON persistence
//
// A Map is not safe for concurrent use. The fail-fast checks detect some
// concurrent structural modifications on a best-effort basis only and must
// not be relied upon for correctness.
//
// The zero Map is empty and ready to use with the default configuration.
package hmap
