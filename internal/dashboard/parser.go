package dashboard

import (
	"regexp"
	"strings"
)

var (
	// 第一个围栏代码块，语言标记可选，允许标记两侧的空白和CRLF换行
	codeBlockPattern = regexp.MustCompile("(?s)```[ \\t]*[\\w+-]*[ \\t]*\\r?\\n(.*?)```")
	// 标记之后的全部文本
	explanationPattern = regexp.MustCompile(`(?s)Explanation:\s*(.*)`)
)

// Result 仪表盘回复的解析结果
type Result struct {
	Code           string           `json:"code"`
	HasCode        bool             `json:"has_code"`
	Table          string           `json:"table"`
	Explanation    string           `json:"explanation"`
	HasExplanation bool             `json:"has_explanation"`
	Warnings       []GrammarWarning `json:"warnings"`
}

// HasWarning 判断是否包含指定告警
func (r Result) HasWarning(code int) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Parse 从补全文本中提取代码、数据表和说明
// 三个部分相互独立，缺失任何一个只产生告警
func Parse(text string) Result {
	var result Result

	rest := text
	outside := text
	if loc := codeBlockPattern.FindStringSubmatchIndex(text); loc != nil {
		result.Code = text[loc[2]:loc[3]]
		result.HasCode = true
		rest = text[loc[1]:]
		outside = text[:loc[0]] + "\n" + text[loc[1]:]
	} else {
		result.Warnings = append(result.Warnings, MissingCodeBlock)
	}

	if table, ok := findTable(outside); ok {
		result.Table = table
	} else {
		result.Warnings = append(result.Warnings, MissingTable)
	}

	if m := explanationPattern.FindStringSubmatch(rest); m != nil {
		result.Explanation = m[1]
		result.HasExplanation = true
	} else {
		result.Warnings = append(result.Warnings, MissingExplanation)
	}

	return result
}

// findTable 返回第一个Markdown表格：表头行、分隔行以及后续的数据行
func findTable(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := 0; i+1 < len(lines); i++ {
		if !isTableRow(lines[i]) || !isSeparatorRow(lines[i+1]) {
			continue
		}
		end := i + 2
		for end < len(lines) && isTableRow(lines[end]) {
			end++
		}
		block := make([]string, 0, end-i)
		for _, line := range lines[i:end] {
			block = append(block, strings.TrimSpace(line))
		}
		return strings.Join(block, "\n"), true
	}
	return "", false
}

func isTableRow(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2
}

// isSeparatorRow 形如 |---|:---:| 的分隔行
func isSeparatorRow(line string) bool {
	line = strings.TrimSpace(line)
	if !isTableRow(line) {
		return false
	}
	cells := strings.Split(strings.Trim(line, "|"), "|")
	for _, cell := range cells {
		cell = strings.Trim(strings.TrimSpace(cell), ":")
		if cell == "" || strings.Trim(cell, "-") != "" {
			return false
		}
	}
	return true
}
