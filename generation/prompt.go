package generation

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/furrow/core"
)

const promptTemplate = `You are an agricultural knowledge assistant. Answer the question using ONLY the provided context.

Context:
{context}

Question: {query}

Instructions:
- Answer clearly and concisely
- Cite sources by filename when making claims
- If context doesn't contain the answer, say "I don't have enough information in the provided documents"
- Keep your answer under 200 words

Answer:`

const blockSeparator = "\n\n"

// BuildPrompt renders the grounded prompt for query. Context blocks are
// added in rank order while they fit in maxContextChars runes; the first
// block is always present, cut to the budget if needed.
func BuildPrompt(query string, results core.GenerationContext, maxContextChars int) string {
	blocks := buildContext(results, maxContextChars)
	r := strings.NewReplacer("{context}", blocks, "{query}", query)
	return r.Replace(promptTemplate)
}

func formatBlock(result core.QueryResult) string {
	return "[Source: " + result.SourceName + "]\n" + result.Text
}

func buildContext(results core.GenerationContext, budget int) string {
	var sb strings.Builder
	used := 0
	for i, result := range results {
		block := formatBlock(result)
		size := utf8.RuneCountInString(block)
		if i == 0 {
			if budget > 0 && size > budget {
				block = cutRunes(block, budget)
				size = budget
			}
			sb.WriteString(block)
			used = size
			continue
		}
		size += len(blockSeparator)
		if budget > 0 && used+size > budget {
			break
		}
		sb.WriteString(blockSeparator)
		sb.WriteString(block)
		used += size
	}
	return sb.String()
}

func cutRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
