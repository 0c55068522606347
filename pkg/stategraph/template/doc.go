// Package template expands ${key} and $key placeholders against workflow
// state.
//
// Nodes use it to build prompts, URLs, headers and request bodies from the
// state they receive:
//
//	url, err := template.Strict().Expand("https://api.example.com/items/${id}", state)
//
// Dotted paths reach into nested maps (${user.name}). Sequences produced by
// Append keys are joined with newlines. A placeholder whose key is absent is
// kept, blanked or reported depending on the MissingAction.
package template
