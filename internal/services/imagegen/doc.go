// Package imagegen wraps the illustration endpoint: one prompt in, one
// hosted image URL out, plus the download to local disk.
package imagegen
