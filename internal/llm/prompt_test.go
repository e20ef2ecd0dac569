package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryPromptTruncates(t *testing.T) {
	builder := NewPromptBuilder(0)
	doc := strings.Repeat("é", 2500)

	prompt := builder.Summary(doc)
	assert.True(t, strings.HasPrefix(prompt, "Summarize the key competitor insights from this data:\n"))
	body := strings.TrimPrefix(prompt, "Summarize the key competitor insights from this data:\n")
	assert.Equal(t, DefaultSummaryLimit, len([]rune(body)))

	short := builder.Summary("tiny")
	assert.Equal(t, "Summarize the key competitor insights from this data:\ntiny", short)
}

func TestDirectPrompt(t *testing.T) {
	builder := NewPromptBuilder(DefaultSummaryLimit)
	prompt := builder.Direct("Tamimi Group Jeddah", "Where is Tamimi?")
	assert.Equal(t, "Context:\nTamimi Group Jeddah\n\nAnswer the following:\nWhere is Tamimi?", prompt)
}

func TestDashboardPrompt(t *testing.T) {
	builder := NewPromptBuilder(DefaultSummaryLimit)
	prompt := builder.Dashboard("ctx-rows", "compare Madaen and Tamimi")

	assert.Contains(t, prompt, "User's question:\ncompare Madaen and Tamimi")
	assert.Contains(t, prompt, "Spreadsheet context:\nctx-rows")
	assert.Contains(t, prompt, "df (a pandas DataFrame")
	assert.Contains(t, prompt, "markdown")
	assert.Contains(t, prompt, "abbreviations")

	code := strings.Index(prompt, "```python")
	explanation := strings.LastIndex(prompt, "Explanation:")
	assert.True(t, code >= 0 && explanation > code)
}

func TestPromptPlaceholdersNotExpandedTwice(t *testing.T) {
	builder := NewPromptBuilder(DefaultSummaryLimit)
	prompt := builder.Dashboard("row with {{.Question}}", "q")
	assert.Contains(t, prompt, "row with {{.Question}}")
}
