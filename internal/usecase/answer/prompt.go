package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
)

const contextSnippetLimit = 1000

func systemPrompt(subject, lang string) string {
	return fmt.Sprintf(
		"You are a syllabus study assistant for subject %s. Answer in language %q. "+
			"Use only the context blocks supplied with the question and cite them by source_id. "+
			"If the context does not cover the question, say so.",
		subject, lang)
}

func taskPrompt(topicPath string) string {
	return "Current topic: " + topicPath + ". Stay within this topic."
}

// contextBlocks renders rows as YAML documents, one per source.
func contextBlocks(rows []result.Row) string {
	var b strings.Builder
	b.WriteString("# Context Blocks\n")
	for i := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		snippet := truncateRunes(rows[i].Snippet(), contextSnippetLimit)
		fmt.Fprintf(&b, "---\nsource_id: %s\ntopic_path: %s\nsnippet: |\n  %s\n---\n",
			rows[i].ID(), rows[i].TopicPath(), strings.ReplaceAll(snippet, "\n", "\n  "))
	}
	return b.String()
}

func userPrompt(question string, rows []result.Row) string {
	return "Question: " + question + "\n\nContext:\n" + contextBlocks(rows)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
