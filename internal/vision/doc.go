// Package vision holds the shared types of the feature-tracking benchmark:
// keypoints, descriptor blocks, matches, the detector/descriptor/matcher/
// selector kinds and the capability interfaces implemented by vision
// backends.
//
// Processing layers live in sub-packages and import this one; this package
// imports none of them:
//
//   - l1images: frame sources (image sequence loading)
//   - l2frames: Frame records and the two-frame sliding window
//   - l3keypoints: region-of-interest filtering and top-N retention
//   - l4matching: distance metrics, nearest-neighbour search, match selection
//   - sweep: configuration enumeration and CSV output
//   - pipeline: per-configuration frame pipeline and sweep runner
package vision
