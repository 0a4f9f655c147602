// Package ffmpeg wraps the ffmpeg and ffprobe binaries used for duration
// probing and the final render.
package ffmpeg
