// Package asset manages topic illustrations: a per-run library keyed by
// topic and normalization of generated images to the render resolution.
package asset
