// Package producer turns a loaded frame description into the inputs of the
// render graph compiler: resource and pass declarations, a stable hash of
// the active module configuration, graphics settings, and one
// `graph.FrameContext` per frame with cameras and draw lists filled in.
//
// Executors are instantiated once, when the Producer is created, so an
// unknown executor or a bad argument fails before the first frame.
package producer
