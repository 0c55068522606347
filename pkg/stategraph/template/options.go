package template

// MissingAction decides what happens to a placeholder whose key is absent.
type MissingAction int

const (
	// MissingKeep leaves the placeholder text untouched.
	MissingKeep MissingAction = iota
	// MissingEmpty replaces the placeholder with "".
	MissingEmpty
	// MissingError fails the expansion with a MissingKeyError.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissing sets the MissingAction. Default: MissingKeep.
func WithMissing(action MissingAction) Option {
	return func(e *Expander) { e.missing = action }
}

// WithDollarStyle toggles bare $key placeholders. ${key} is always enabled.
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) { e.dollar = enabled }
}

// WithSeparator sets the string used to join sequence values. Default "\n".
func WithSeparator(sep string) Option {
	return func(e *Expander) { e.sep = sep }
}
