package llm

// supportedProviders lists the provider names resolveEngine knows how
// to dispatch, in the order they should be presented to users.
var supportedProviders = []string{"openai", "gemini"}

// SupportedProviders returns the names of the generation backends this
// build can talk to. The returned slice is a copy and may be modified
// freely by the caller.
func SupportedProviders() []string {
	out := make([]string, len(supportedProviders))
	copy(out, supportedProviders)
	return out
}
