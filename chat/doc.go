// Package chat holds the conversation with a built workflow.
//
// A Session keeps the turns exchanged with the execution backend and moves
// between three states:
//
//	Idle --Submit--> Sending --reply--> Idle
//	                         --error--> Failed
//
// Submit appends the user turn before the request goes out, so listeners see
// it at once, and appends the reply (or an "Error: ..." turn) when the
// backend answers. Only one message may be in flight; a second Submit returns
// ErrBusy.
//
// The session is attached to at most one stored workflow at a time. Open
// switches workflows and drops any reply still in flight for the previous
// one; reopening the same workflow keeps the conversation. Reset empties it
// unconditionally, and Attach gives an unsaved conversation the id its
// workflow was just created with. LoadHistory fetches the stored conversation once per activation and
// ClearHistory empties the local turns before asking the backend to purge its
// copy.
//
//	sess := chat.NewSession(backend, source, chat.WithTimeout(time.Minute))
//	sess.Open(ctx, workflowID)
//	_ = sess.LoadHistory(ctx)
//	res, err := sess.Submit(ctx, "What does the handbook say about leave?")
//	if err == nil {
//		fmt.Println(res.Reply.Content)
//	}
//
// Messages converts the turns to langchaingo message content for callers
// that hand the history to a model directly.
package chat
