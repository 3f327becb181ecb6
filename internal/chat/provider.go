package chat

import "context"

// Provider is one AI backend in the fallback chain. Ask returns the reply
// text or an error; the chat service moves to the next provider on error.
type Provider interface {
	// Name identifies the provider in logs and responses
	Name() string
	// Available reports whether the provider is configured
	Available() bool
	// Ask sends one user message with a domain system prompt prepended
	Ask(ctx context.Context, message string) (string, error)
}

// SystemPrompt frames every provider call around the irrigation domain
const SystemPrompt = "You are an assistant for a smart irrigation system monitoring soil moisture, " +
	"temperature, humidity, rain and light sensors on a farm. Answer briefly and practically. " +
	"If asked about current sensor values, explain that live data is shown on the dashboard."
