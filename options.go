package xltemplate

import "log/slog"

// Options holds configuration for a Workbook.
type Options struct {
	logger          *slog.Logger
	hyperlinks      bool
	removeCalcChain bool
	sheets          []string
}

func defaultOptions() *Options {
	return &Options{
		logger:          slog.New(slog.DiscardHandler),
		hyperlinks:      true,
		removeCalcChain: true,
	}
}

// Option configures a Workbook.
type Option func(*Options)

// WithLogger sets the logger used for debug records (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHyperlinks controls placeholder substitution in hyperlink targets (default: true).
func WithHyperlinks(enabled bool) Option {
	return func(o *Options) { o.hyperlinks = enabled }
}

// WithCalcChainRemoval controls whether Substitute drops the calculation
// chain part (default: true).
func WithCalcChainRemoval(enabled bool) Option {
	return func(o *Options) { o.removeCalcChain = enabled }
}

// WithSheets restricts SubstituteAll and the Fill functions to the named sheets.
func WithSheets(names ...string) Option {
	return func(o *Options) { o.sheets = append(o.sheets, names...) }
}
