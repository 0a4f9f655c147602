// Package workflow drives a run through the report pipeline: scrape,
// script, narrate, illustrate, align, plan, render. Stage boundaries are
// persisted to the run store so an interrupted run resumes at the first
// stage whose artifacts are missing.
package workflow
