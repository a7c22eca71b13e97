// Package quality scores segmentation masks.
//
// A Scorer turns a mask into a Metrics record: coverage, edge sharpness,
// noise, temporal consistency and stability, folded into one overall score in
// [0,1]. Consistency and stability are measured against a bounded history of
// recent records, so a Scorer is stateful and meant to be driven by a single
// goroutine (its methods are nonetheless safe for concurrent use).
//
// Scores below the configured threshold are not errors. They are reported
// through the OnLowQuality hook along with the Issues that explain them, and
// the caller decides what to do with the mask.
package quality
