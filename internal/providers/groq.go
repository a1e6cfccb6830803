package providers

// Groq exposes an OpenAI-compatible endpoint under /openai/v1.
type Groq struct{ chatCompletions }

func NewGroq(cfg Config) *Groq {
	return &Groq{chatCompletions{cfg: cfg, name: NameGroq, keyEnv: "GROQ_API_KEY"}}
}
