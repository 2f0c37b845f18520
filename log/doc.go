// Package log provides the leveled logging interface used across the stack.
//
// Components take a Logger through their options and fall back to the
// package-level logger when none is given:
//
//	logger := log.NewStackLogger(log.LogLevelDebug)
//	sess := chat.NewSession(backend, chat.WithLogger(logger))
//
// DefaultLogger writes through the standard library logger, GologLogger
// forwards to github.com/kataras/golog, and NoOpLogger discards output.
package log
