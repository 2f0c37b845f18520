// Package builder ties an editable workflow graph to the backend.
//
// A Builder owns the GraphStore being edited together with the workflow's
// name and backend id. Build validates the graph and unlocks chat until the
// next edit. Save creates the workflow on first use and updates it later;
// a failed save leaves the graph untouched and, with WithDrafts, keeps a
// local copy in a store.DraftStore.
//
//	c, _ := client.New(client.WithToken(token))
//	b := builder.New(c, c, builder.WithDefaults(workflow.SessionDefaults{
//		ModelAPIKey: os.Getenv("GEMINI_API_KEY"),
//	}))
//
//	q, _ := b.Graph().AddNode(workflow.KindQueryIntake, workflow.Position{})
//	...
//	if v := b.Build(); !v.Valid {
//		return v.Err()
//	}
//	sess, err := b.OpenChat(ctx)
package builder
