// Package s3store implements the cache backend on an S3-compatible object
// store. Objects are named <prefix>/<version>/<cache key> so fallback lookups
// become a ListObjectsV2 prefix scan. Uploads are conditional (If-None-Match)
// so two jobs racing on the same key end in a reservation conflict for the
// loser rather than a silent overwrite.
package s3store
