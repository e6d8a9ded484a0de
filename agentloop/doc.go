// Package agentloop implements a bounded tool-calling agent loop on top of
// the unifiedllm provider adapters.
//
// A Session owns the transcript. Each Submit appends the user's input, then
// repeatedly sanitizes the transcript, calls the active provider, records the
// assistant reply and runs any requested tools in order, appending one
// tool-role message per call. The turn ends when the model stops asking for
// tools or after MaxIterations round trips.
//
// # Architecture
//
//   - Session: conversation state, the running flag and the loop itself.
//   - ToolRegistry: registration and never-failing execution of tools.
//   - Renderer: the presentation sink (messages, alerts, busy state and
//     sandbox output); ChannelRenderer turns callbacks into events.
//   - Transcript: append-only message log with JSON export and import.
//
// # Quick Start
//
//	settings := agentloop.DefaultSettings()
//	settings.Credential = os.Getenv("OPENAI_API_KEY")
//
//	tools := agentloop.NewToolRegistry()
//	session := agentloop.NewSession(unifiedllm.NewDefaultClient(nil, nil, nil), tools, settings)
//	agentloop.RegisterStandardTools(tools, agentloop.ToolDeps{}, session.Settings)
//
//	if err := session.Submit(ctx, "What is 2**32? Use the sandbox."); err != nil {
//	    log.Fatal(err)
//	}
package agentloop
