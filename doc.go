// Package genaistack is the Go core of GenAI Stack, a no-code builder for
// retrieval augmented chat pipelines.
//
// A pipeline is a small graph of four component kinds: a user query, an
// optional knowledge base, an LLM engine and an output. The packages split
// the work as follows:
//
//   - workflow: the graph, its kind registry, validation, execution order,
//     execution config resolution and Mermaid/DOT/ASCII export
//   - chat: the conversation with a built pipeline
//   - client: the HTTP client for the execution backend
//   - builder: an editing session tying a graph to save, load, build and chat
//   - store: local drafts kept when saving fails (memory, sqlite, redis,
//     postgres)
//   - render: markdown answers to safe HTML or plain text, log timelines
//   - config: YAML, .env and environment configuration
//   - log: the leveled logger used throughout
//
// The stackctl command under cmd/ drives all of it from a terminal:
//
//	stackctl validate pipeline.json
//	stackctl chat pipeline.json
//	stackctl workflows save -name "Handbook QA" pipeline.json
package genaistack
