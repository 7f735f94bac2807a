// Package hdmap loads the road-network lane map and answers the lane
// queries grading needs: which lanes contain a position, a lane's speed
// limit, and its boundary geometry.
//
// A Map is the decoded file; an Index is built once from it and is
// read-only afterwards, so one Index may be shared by concurrent sessions.
package hdmap
