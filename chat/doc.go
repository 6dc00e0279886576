// Package chat turns questions about an indexed schema into grounded,
// streamed answers.
//
// The Asker retrieves relevant chunks (or the whole corpus for broad
// list/count questions), builds a schema-grounded system prompt, fits
// the running conversation into the model's token budget via the
// Window manager, and streams the generation. The Window manager
// progressively summarizes older turns when the budget tightens,
// preserving named schema objects so follow-up references stay
// resolvable. Conversation state lives entirely in the caller; each
// turn returns the summary and truncated history to carry forward.
package chat
