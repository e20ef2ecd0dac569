package dashboard

import "fmt"

// 语法告警码，均为提示性质，不会中断处理
const (
	WarnMissingCodeBlock   = 3001 // 回复中没有代码块
	WarnMissingExplanation = 3002 // 回复中没有Explanation:标记
	WarnMissingTable       = 3003 // 代码块之外没有Markdown表格
)

// GrammarWarning 仪表盘回复缺少某个段落
type GrammarWarning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现error接口，便于调用方统一记录
func (w GrammarWarning) Error() string {
	return fmt.Sprintf("dashboard warning (code=%d): %s", w.Code, w.Message)
}

var (
	// MissingCodeBlock 未找到代码块，调用方应跳过图表渲染
	MissingCodeBlock = GrammarWarning{Code: WarnMissingCodeBlock, Message: "no valid code block found in response"}
	// MissingExplanation 未找到说明段落
	MissingExplanation = GrammarWarning{Code: WarnMissingExplanation, Message: "no explanation found in response"}
	// MissingTable 未找到数据表
	MissingTable = GrammarWarning{Code: WarnMissingTable, Message: "no markdown data table found in response"}
)
