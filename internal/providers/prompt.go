package providers

// instruction frame shared by every provider so answers stay comparable.
const promptFrame = `You are a helpful assistant.
Answer the user's question clearly and concisely in a few paragraphs.

Question: `

// Render places the question verbatim into the shared frame.
func Render(question string) string {
	return promptFrame + question + "\n"
}
