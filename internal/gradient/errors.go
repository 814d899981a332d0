package gradient

import "fmt"

// ParseError reports a gradient string that does not match the
// linear-gradient(<direction>, <stop>, ...) grammar.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid gradient %q: %s", e.Input, e.Reason)
}

// ConfigurationError reports a degenerate rasterization request, such as an
// empty stop list or a table narrower than two samples.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "gradient configuration: " + e.Reason
}

// ColorError reports a color literal that cannot be resolved to RGBA.
type ColorError struct {
	Literal string
}

func (e *ColorError) Error() string {
	return fmt.Sprintf("unsupported color %q", e.Literal)
}
