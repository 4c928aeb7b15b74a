package llm

// ChatOptions represents per-call options for a completion request
type ChatOptions struct {
	Model       string         // Overrides the backend's default model
	Temperature *float64       // Controls randomness
	TopP        *float64       // Controls diversity
	MaxTokens   int            // Maximum number of tokens to generate
	Stop        []string       // Stop sequences
	Seed        *int           // Sampling seed
	Extra       map[string]any // Raw backend options, merged last
}

// Option is a function type to modify ChatOptions
type Option func(*ChatOptions)

// NewChatOptions applies opts over an empty ChatOptions.
func NewChatOptions(opts ...Option) *ChatOptions {
	o := &ChatOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BackendOptions flattens the options into the backend's "options" map.
// It returns nil when nothing is set.
func (o *ChatOptions) BackendOptions() map[string]any {
	out := map[string]any{}
	if o.Temperature != nil {
		out["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		out["top_p"] = *o.TopP
	}
	if o.MaxTokens > 0 {
		out["num_predict"] = o.MaxTokens
	}
	if len(o.Stop) > 0 {
		out["stop"] = o.Stop
	}
	if o.Seed != nil {
		out["seed"] = *o.Seed
	}
	for k, v := range o.Extra {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func WithModel(model string) Option {
	return func(o *ChatOptions) {
		o.Model = model
	}
}

func WithTemperature(temp float64) Option {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

func WithTopP(topP float64) Option {
	return func(o *ChatOptions) {
		o.TopP = &topP
	}
}

func WithMaxTokens(tokens int) Option {
	return func(o *ChatOptions) {
		o.MaxTokens = tokens
	}
}

func WithStop(stop []string) Option {
	return func(o *ChatOptions) {
		o.Stop = stop
	}
}

func WithSeed(seed int) Option {
	return func(o *ChatOptions) {
		o.Seed = &seed
	}
}

// WithOptions passes raw backend options through untouched.
func WithOptions(options map[string]any) Option {
	return func(o *ChatOptions) {
		if len(options) == 0 {
			return
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any, len(options))
		}
		for k, v := range options {
			o.Extra[k] = v
		}
	}
}
