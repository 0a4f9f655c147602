// Package render turns a planned timeline into the final video through a
// single ffmpeg invocation.
package render
