// Package l3keypoints owns Layer 3 (Keypoints) of the benchmark data model.
//
// Responsibilities: restricting detected keypoints to the region of
// interest, top-N retention by response score, and keypoint size
// statistics. Key types: ROI, SizeStats.
//
// Dependency rule: L3 may depend on the vision root package, but never on
// l4matching or above.
package l3keypoints
