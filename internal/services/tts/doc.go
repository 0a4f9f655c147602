// Package tts wraps the narration synthesis endpoint. One call returns both
// the continuous audio track and frontend word timestamps, which downstream
// alignment consumes as recognized spans.
package tts
