/*
Package config reads loosely typed configuration blocks, such as the
per-node settings of a graph definition, without a type assertion at every
call site.

Optional values come with a default:

	cfg := config.New(raw)
	attempts := cfg.Int("max_attempts", 1)
	delay := cfg.Millis("delay_ms", 0)
	headers := cfg.StringMap("headers")

Required values return a *FieldError naming where the value was expected:

	url, err := cfg.At("nodes.fetch").RequireString("url")
	// nodes.fetch.url: required value missing

Files are loaded with FromFile, FromYAML or FromJSON. String values may
reference environment variables as ${env.NAME}; other placeholders are left
for later expansion against workflow state.

Config never modifies the map it wraps.
*/
package config
