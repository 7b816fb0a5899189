// Package pipeline provides orchestration for the feature-tracking benchmark.
//
// FramePipeline runs one configuration over a frame source: it pushes each
// frame into the sliding window, then detects, filters, retains, describes
// and, once two frames are held, matches. Runner drives a whole sweep,
// one FramePipeline per configuration. The pipeline does not own the
// vision algorithms; it delegates to a vision.Backend and the layer
// packages.
package pipeline
