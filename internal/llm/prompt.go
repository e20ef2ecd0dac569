package llm

import "strings"

// DefaultSummaryLimit 摘要提示词最多引用的文档字符数
const DefaultSummaryLimit = 2000

// SummaryTemplate 摘要提示词模板
// 包含变量：
// {{.Data}} - 规范化文档的前缀
const SummaryTemplate = "Summarize the key competitor insights from this data:\n{{.Data}}"

// DirectTemplate 直接问答提示词模板
// 包含变量：
// {{.Context}} - 检索的上下文
// {{.Question}} - 用户问题
const DirectTemplate = "Context:\n{{.Context}}\n\nAnswer the following:\n{{.Question}}"

// DashboardTemplate 仪表盘提示词模板
// 回复必须先给出代码块，再给出Explanation:段落
const DashboardTemplate = `You are a smart data assistant. Based on the user's question and this spreadsheet data,
do the following:
1. Generate Python chart code (using pandas + matplotlib or seaborn). You may assume these names already exist:
   pd (pandas), plt (matplotlib.pyplot), sns (seaborn) and df (a pandas DataFrame of the uploaded sheet).
2. Use abbreviations in the chart for names that are too long (e.g., 'Madaen Real Estate').
3. Write down all the numeric data you have used to make the dashboard into a table in markdown language.
   Do not make any assumption about the data, so the user knows the dashboard is correct.
4. Write a clear explanation of the chart, analyse the dashboard and expand any abbreviations.

User's question:
{{.Question}}

Spreadsheet context:
{{.Context}}

Return the response in the following format:
` + "```python\n<code>\n```" + `

Explanation:
<text>
`

// PromptBuilder 提示词组装器
// 纯字符串模板替换，没有隐藏状态
type PromptBuilder struct {
	summaryLimit int
}

// NewPromptBuilder 创建提示词组装器
func NewPromptBuilder(summaryLimit int) *PromptBuilder {
	if summaryLimit <= 0 {
		summaryLimit = DefaultSummaryLimit
	}
	return &PromptBuilder{summaryLimit: summaryLimit}
}

// Summary 基于文档前缀生成摘要提示词
func (b *PromptBuilder) Summary(document string) string {
	return strings.Replace(SummaryTemplate, "{{.Data}}", prefixRunes(document, b.summaryLimit), 1)
}

// Direct 生成直接问答提示词
func (b *PromptBuilder) Direct(context, question string) string {
	return fill(DirectTemplate, context, question)
}

// Dashboard 生成仪表盘提示词
func (b *PromptBuilder) Dashboard(context, query string) string {
	return fill(DashboardTemplate, context, query)
}

// fill 单遍替换，替换进来的文本中的占位符不会被再次展开
func fill(template, context, question string) string {
	return strings.NewReplacer("{{.Context}}", context, "{{.Question}}", question).Replace(template)
}

// prefixRunes 按码点截取前n个字符
func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
