// Package local implements the cache backend on a local or shared filesystem.
// Entries live under StoragePath/<version>/<blake3(key)> as a compressed tar
// archive plus a CBOR metadata sidecar; writes go through a temp file and an
// atomic rename, and a per-entry flock makes concurrent savers of the same key
// observe a reservation conflict instead of clobbering each other.
package local
