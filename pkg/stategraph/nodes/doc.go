// Package nodes provides the node variants workflows are assembled from.
//
// Every variant implements stategraph.Node and stategraph.KeyDeclarer, so a
// graph built from them has its key usage checked at compile time:
//
//   - Compute wraps a plain function.
//   - Set writes constant values.
//   - Classifier labels text through an llm.Classifier.
//   - HTTP calls an endpoint under a retry policy.
//   - Generate prompts an llm.Generator or llm.Streamer.
//   - Subgraph runs another compiled graph as one step.
//   - Agent runs a bounded tool-calling loop against a langchaingo model.
//   - Parallel fans out to branches concurrently and joins their updates.
//
// Routers for conditional edges live here too: KeyRouter, CategoryRouter and
// WhenRouter.
//
// Nodes hold no per-execution state and may be shared by concurrent runs.
package nodes
