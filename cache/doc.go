// Package cache provides the inference result cache.
//
// Results are keyed by a frame fingerprint (see frame.Fingerprint) and kept
// for a fixed lifetime. The memory implementation is sharded so lookups and
// stores for different frames do not contend, and it enforces a byte budget by
// evicting the least recently accessed entries once the lifetime alone is not
// enough to keep it bounded.
//
// The cache owns every buffer it stores: Store deep-copies the mask and
// snapshots the input frame, and entries returned from Lookup must be treated
// as read-only.
package cache
