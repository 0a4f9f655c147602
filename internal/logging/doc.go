// Package logging wires log/slog with the handlers the pipeline uses: a
// single-line console handler (colorized on terminals) and a JSON handler for
// log files. Attr helpers and context-derived fields keep structured keys
// consistent across stages.
package logging
