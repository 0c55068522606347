/*
Package expr evaluates the small boolean conditions used to route between
nodes in declarative graph definitions.

# Syntax

	expr    := or
	or      := and { ("or" | "||") and }
	and     := unary { ("and" | "&&") unary }
	unary   := ("not" | "!") unary | compare
	compare := operand [ op operand ]
	op      := "==" | "!=" | "<" | ">" | "<=" | ">=" | "contains" | "in"
	operand := string | number | true | false | null | path | len(path) | "(" expr ")"

Strings are single or double quoted. A path names a state key and may
descend into nested maps with dots (user.tier). Keys that are absent resolve
to null.

# Semantics

== and != compare numerically when both sides are numbers and textually
otherwise. Ordering operators compare numbers numerically and anything else
as text. contains tests substring membership for text and element
membership for sequences; "x in seq" is the same test reversed. A lone
operand is converted with IsTruthy.

	category == 'billing' and len(attempts) < 3
	not approved or score >= 0.8
	'urgent' in labels

Expressions are compiled once and evaluated many times:

	cond, err := expr.Compile("len(notes) >= 2")
	ok, err := cond.Bool(state)
*/
package expr
