package providers

// ProviderKind identifies the wire protocol an adapter speaks
type ProviderKind string

// Provider kind constants
const (
	KindOpenAIChat           ProviderKind = "openai-chat"
	KindAnthropicMessages    ProviderKind = "anthropic-messages"
	KindGeminiGenerate       ProviderKind = "gemini-generate"
	KindHuggingFaceInference ProviderKind = "huggingface-inference"
	KindLocalCompletion      ProviderKind = "local-completion"
)

// String returns the string representation of the provider kind
func (k ProviderKind) String() string {
	return string(k)
}

// IsValid checks if the provider kind is supported
func (k ProviderKind) IsValid() bool {
	switch k {
	case KindOpenAIChat, KindAnthropicMessages, KindGeminiGenerate, KindHuggingFaceInference, KindLocalCompletion:
		return true
	default:
		return false
	}
}

// AllKinds returns all built-in provider kinds
func AllKinds() []ProviderKind {
	return []ProviderKind{
		KindOpenAIChat,
		KindAnthropicMessages,
		KindGeminiGenerate,
		KindHuggingFaceInference,
		KindLocalCompletion,
	}
}
