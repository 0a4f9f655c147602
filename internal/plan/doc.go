// Package plan builds the scene timeline: consecutive segments on the same
// topic share one illustrated scene, and every scene gets at least the
// configured minimum on screen when its neighbors can spare the time.
package plan
