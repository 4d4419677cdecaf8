package parser

import "time"

// ParserBuilderOption is a functional option for configuring a Parser via NewParser.
type ParserBuilderOption func(*parser)

// WithArtificialDelay is an option builder that sleeps for the given duration
// after each successful parse. Useful for exercising progress reporting and
// stall detection when loading from a fast local server.
//
// Parameters:
//   - d: the delay to apply after each parse (values <= 0 disable it)
//
// Returns:
//   - ParserBuilderOption: a function that applies the delay option to a parser
func WithArtificialDelay(d time.Duration) ParserBuilderOption {
	return func(p *parser) {
		if d > 0 {
			p.delay = d
		}
	}
}
