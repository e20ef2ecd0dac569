package dashboard

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Render 把Markdown片段转换为HTML
func Render(md string) string {
	if md == "" {
		return ""
	}

	// 每次调用都需要新的解析器
	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})

	return string(markdown.ToHTML([]byte(md), mdParser, renderer))
}

// Rendered 解析结果的HTML形式
type Rendered struct {
	TableHTML       string `json:"table_html"`
	ExplanationHTML string `json:"explanation_html"`
}

// RenderResult 渲染数据表和说明
func RenderResult(r Result) Rendered {
	return Rendered{
		TableHTML:       Render(r.Table),
		ExplanationHTML: Render(r.Explanation),
	}
}
