// Package grading scores a recorded drive against a lane map.
//
// A Session consumes one ordered message stream. Routing messages replace
// the list of lanes the vehicle is expected to drive next; localization
// messages resolve the vehicle's lane, track how far it was under (or over)
// the lane speed limit and debounce contacts between the vehicle footprint
// and the lane boundary. The result is a Summary: the lanes driven after
// warm-up, the minimum speed margin and the minimum boundary distance.
//
// GradeAll runs many sessions in parallel, one per drivelog.
package grading
