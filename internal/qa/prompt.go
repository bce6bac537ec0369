package qa

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
)

// buildContext renders retrieved messages into the prompt's context block.
// Each message is attributed to its channel and author so the model can
// cite them naturally.
func buildContext(results []retrieval.Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		channel := r.ChannelName
		if channel == "" {
			channel = "unknown"
		}
		author := r.UserName
		if author == "" {
			author = "unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[#%s] (from %s):\n%s", channel, author, r.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// buildPrompt assembles the full generation prompt.
func buildPrompt(question, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are answering a question about a team's chat history. ")
	b.WriteString("Use only the messages below. If the messages do not contain ")
	b.WriteString("the answer, say so rather than guessing.\n\n")
	b.WriteString("Messages:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question, citing channels inline like [#general]. ")
	b.WriteString("Do not add a sources or links section. End with a single line of ")
	b.WriteString("the form \"Confidence: N% - reason\" where N between 0 and 100 ")
	b.WriteString("reflects how well the messages support your answer.")
	return b.String()
}
