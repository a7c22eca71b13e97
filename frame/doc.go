// Package frame defines the image-side vocabulary shared by the scheduling
// core: processing resolutions, segmentation masks and frame fingerprints.
//
// Images are plain image.Image values. Callers hand frames to the pipeline and
// must not mutate them afterwards; anything the cache keeps is snapshotted
// first (see Snapshot). Masks returned from the cache are read-only.
package frame
