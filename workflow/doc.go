// Package workflow models a GenAI stack as a directed graph of typed nodes.
//
// A workflow is built from four node kinds: a user-query intake, an
// optional knowledge base, an LLM engine and an output. Each kind declares
// its ports and default data in a Registry; GraphStore enforces that every
// edge joins a declared output port to a declared input port of live nodes,
// and that removing a node removes the edges touching it.
//
// # Building
//
// Validate checks a snapshot against the build rules and reports the first
// one violated:
//
//	store := workflow.NewGraphStore()
//	q, _ := store.AddNode(workflow.KindQueryIntake, workflow.Position{})
//	llm, _ := store.AddNode(workflow.KindLLMEngine, workflow.Position{X: 300})
//	out, _ := store.AddNode(workflow.KindOutput, workflow.Position{X: 600})
//	store.Connect(q.ID, workflow.PortQuery, llm.ID, workflow.PortQuery)
//	store.Connect(llm.ID, workflow.PortResponse, out.ID, workflow.PortResponse)
//
//	g := store.Snapshot()
//	cfg := workflow.Resolve(g, workflow.SessionDefaults{ModelAPIKey: key})
//	if v := workflow.Validate(g, cfg); !v.Valid {
//		fmt.Println(v.Reason)
//	}
//
// # Persistence
//
// Graph, Node and Edge encode to the canvas JSON shape the execution backend
// stores. Unknown data keys and unknown node kinds are preserved so a
// definition written by another editor survives a round trip. Gateway is the
// contract for remote CRUD of named Records.
package workflow
