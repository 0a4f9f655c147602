// Package subtitles emits the SRT file the renderer burns into the video.
package subtitles
