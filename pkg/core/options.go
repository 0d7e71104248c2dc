package core

import "time"

// RetrieveOption is a function type for configuring RetrieveRelevant calls.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type RetrieveOption func(*RetrieveOptions)

// RetrieveOptions contains configuration options for RetrieveRelevant calls.
type RetrieveOptions struct {
	// TopK is the maximum number of results to return.
	// Default: 5
	TopK int

	// Speaker filters results to an exact speaker match. The filter is
	// skipped when empty or SpeakerUnknown.
	Speaker string

	// Since keeps only memories created at or after this time.
	// The zero value disables the filter.
	Since time.Time

	// Tags keeps only memories carrying at least one of these tags.
	Tags []string

	// Sentiment filters results to an exact sentiment match.
	Sentiment string
}

// WithTopK sets the maximum number of results for RetrieveRelevant calls.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "query", core.WithTopK(10))
func WithTopK(topK int) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.TopK = topK
	}
}

// WithSpeaker filters RetrieveRelevant results to a single speaker.
//
// Passing "" or SpeakerUnknown disables the filter.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "query", core.WithSpeaker("jason"))
func WithSpeaker(speaker string) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.Speaker = speaker
	}
}

// WithSince keeps only memories created at or after the given time.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "query",
//	    core.WithSince(time.Now().AddDate(0, -1, 0)))
func WithSince(since time.Time) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.Since = since
	}
}

// WithTags keeps only memories carrying at least one of the given tags.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "query", core.WithTags("travel", "family"))
func WithTags(tags ...string) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.Tags = tags
	}
}

// WithSentiment filters RetrieveRelevant results to an exact sentiment.
//
// Example:
//
//	results := client.RetrieveRelevant(ctx, "query", core.WithSentiment("positive"))
func WithSentiment(sentiment string) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.Sentiment = sentiment
	}
}

// applyRetrieveOptions applies RetrieveRelevant options to create RetrieveOptions.
func applyRetrieveOptions(opts []RetrieveOption) *RetrieveOptions {
	options := &RetrieveOptions{
		TopK: 5,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
