// Package cacheflow implements the two phases of a cache run. Restore looks up
// the primary key (falling back to the ordered restore keys), records what it
// found in the run state and reports whether the hit was exact. Save, running
// later as a separate process, reads that record back and uploads under the
// recorded primary key unless the restore already hit it exactly.
package cacheflow
