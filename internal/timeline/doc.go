// Package timeline defines the timed data model shared by alignment,
// planning, and rendering: segments carry spoken intervals, scenes tile the
// full narration without gaps or overlaps.
package timeline
