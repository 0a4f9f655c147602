// Package align assigns spoken intervals to script segments by matching
// recognition spans from the synthesis frontend against segment text.
package align
