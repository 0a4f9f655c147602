// Package run persists pipeline runs in SQLite and lays out the per-run
// artifact directory. Each stage records its artifact path on the run row,
// which is what makes interrupted runs resumable.
package run
