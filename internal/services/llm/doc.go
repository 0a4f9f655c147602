// Package llm wraps an OpenAI-compatible chat-completions endpoint used by
// the script generator. Responses are requested as strict JSON objects.
package llm
