// Package services defines the shared error taxonomy and request context
// plumbing used by every pipeline stage and external collaborator client.
//
// Errors are classified by sentinel markers: collaborator failures
// (generation, synthesis, image generation) are retryable by the orchestrator;
// core failures (alignment, unresolved topic, render) are fatal to the run.
package services
