package relay

// Usage tracks token consumption reported by the provider for one response.
// Providers must clamp derived values to zero.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
