// Package geometry is the planar geometry service used by grading: the
// vehicle footprint built from a pose, lane polygons built from boundary
// lines, and distances between footprints, points and lane boundaries.
//
// Primitives (points, rings, bounds, point-in-ring, point-to-segment
// distance) come from github.com/paulmach/orb. Coordinates are map-frame
// metres.
package geometry
