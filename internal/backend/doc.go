// Package backend defines the storage contract the cache phases talk to:
// Restore resolves a primary key plus ordered fallback prefixes to the key of
// an existing entry and unpacks it into the workspace, Save packs a path set
// and stores it under a key. Failures are reported as *Error values tagged
// with a Kind so callers can tell caller misconfiguration (validation) and
// concurrent writers (reservation conflict) apart from everything else.
//
// The package also carries the pieces shared by concrete backends: key/path
// validation, the cache version derived from the path set, the tar archive
// codec (zstd or lz4) and match selection over stored entries.
package backend
