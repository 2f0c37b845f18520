// Package render turns backend output into something a person reads: the
// model's markdown answer as sanitized HTML or plain text, and an
// execution log as a terminal timeline.
package render
