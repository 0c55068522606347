/*
Package definition builds compiled graphs from declarative YAML or JSON.

A definition names its state keys, nodes, edges and conditional edges:

	name: feedback
	max_iterations: 10
	keys:
	  text: replace
	  label: replace
	  notes: append
	  total: sum            # a registered merge function
	nodes:
	  - id: classify
	    type: classifier
	    config:
	      input_key: text
	      output_key: label
	      categories: [positive feedback, negative feedback]
	  - id: thank
	    type: set
	    config:
	      values: {notes: thanked}
	edges:
	  - {from: start, to: classify}
	  - {from: thank, to: end}
	conditional_edges:
	  - from: classify
	    key: label
	    routes:
	      - {label: positive feedback, to: thank}
	      - {label: negative feedback, to: end}

Node types resolve through a registry of factories. The built-in types are
set, format, classifier, generate, http, agent, subgraph and parallel;
callers add their own with Loader.RegisterType.

A conditional edge either routes on the value of key, or, without key, on
the first route whose when expression holds (see package expr). A route
without when is the fallback.

start and end may be written for the reserved START and END nodes.
*/
package definition
