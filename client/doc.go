// Package client talks to the GenAI Stack backend over HTTP.
//
// One Client covers every endpoint the builder needs: workflow CRUD, chat
// execution and history, execution logs, document upload and auth. It
// satisfies workflow.Gateway and chat.Backend, so it can be handed straight
// to a builder.
//
//	c, err := client.New(
//		client.WithBaseURL("http://localhost:8000/api"),
//		client.WithToken(token),
//		client.WithCircuitBreaker(client.DefaultBreakerSettings()),
//	)
//
// Non-2xx answers come back as *APIError carrying the backend's "detail"
// message. The circuit breaker only counts server errors and transport
// failures; it never retries. WithMetrics registers request counters and
// latency histograms with a Prometheus registerer.
//
// Package clienttest provides an in-process fake of the backend for tests.
package client
