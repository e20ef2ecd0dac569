package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
)

// SheetHeaderFormat 每个工作表文本块的标题行
const SheetHeaderFormat = "### Sheet: %s"

// DefaultDenylist 模板/法律样板行的关键词（不区分大小写的子串匹配）
var DefaultDenylist = []string{
	"Signature",
	"Instructions",
	"discussed",
	"Rating Info",
	"Address",
	"Company Website",
	"Date",
}

// NormalizerConfig 表格规范化配置
type NormalizerConfig struct {
	Denylist []string // 样板行关键词
}

// NormalizerOption 规范化器配置选项
type NormalizerOption func(*NormalizerConfig)

// WithDenylist 替换样板行关键词列表
func WithDenylist(terms ...string) NormalizerOption {
	return func(c *NormalizerConfig) {
		c.Denylist = terms
	}
}

// Normalizer 将多工作表的Excel文件转换为清洗后的纯文本
type Normalizer struct {
	denylist []string // 已转为小写
}

// NewNormalizer 创建表格规范化器
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	cfg := &NormalizerConfig{Denylist: DefaultDenylist}
	for _, opt := range opts {
		opt(cfg)
	}

	denylist := make([]string, 0, len(cfg.Denylist))
	for _, term := range cfg.Denylist {
		if term = strings.TrimSpace(term); term != "" {
			denylist = append(denylist, strings.ToLower(term))
		}
	}
	return &Normalizer{denylist: denylist}
}

// ParseReader 读取工作簿并返回规范化文本
// 任何一个工作表读取失败都会返回ParseError，不产生部分输出
func (n *Normalizer) ParseReader(r io.Reader, filename string) (string, error) {
	sheets, err := n.ReadSheets(r, filename)
	if err != nil {
		return "", err
	}
	return n.Render(sheets), nil
}

// Normalize 读取工作簿，返回规范化文本和非空工作表名称
func (n *Normalizer) Normalize(r io.Reader, filename string) (*Normalized, error) {
	sheets, err := n.ReadSheets(r, filename)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		if !sheet.Empty() {
			names = append(names, sheet.Name)
		}
	}
	return &Normalized{Text: n.Render(sheets), Sheets: names}, nil
}

// ReadSheets 按原始顺序读取并清洗所有工作表
func (n *Normalizer) ReadSheets(r io.Reader, filename string) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewParseError(filename, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, NewParseError(filename, errors.New("workbook has no sheets"))
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		// 保留单元格的原始值，不做数字格式化
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, NewParseError(filename, fmt.Errorf("read sheet %q: %w", name, err))
		}
		sheets = append(sheets, n.Clean(Sheet{Name: name, Rows: rows}))
	}
	return sheets, nil
}

// Clean 清洗单个工作表
// 顺序：去掉全空行，去掉全空列，再去掉包含样板关键词的行
func (n *Normalizer) Clean(sheet Sheet) Sheet {
	width := 0
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, row)
		if len(row) > width {
			width = len(row)
		}
	}

	keep := make([]bool, width)
	for _, row := range rows {
		for i, cell := range row {
			if !isBlank(cell) {
				keep[i] = true
			}
		}
	}

	cleaned := make([][]string, 0, len(rows))
	for _, row := range rows {
		if n.isBoilerplate(row) {
			continue
		}
		out := make([]string, 0, width)
		for i := 0; i < width; i++ {
			if !keep[i] {
				continue
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			out = append(out, cell)
		}
		cleaned = append(cleaned, out)
	}

	return Sheet{Name: sheet.Name, Rows: cleaned}
}

// Render 拼接各工作表的文本渲染，空表不输出
func (n *Normalizer) Render(sheets []Sheet) string {
	var b strings.Builder
	for _, sheet := range sheets {
		if sheet.Empty() {
			continue
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, SheetHeaderFormat, sheet.Name)
		b.WriteString("\n")
		b.WriteString(renderTable(sheet.Rows))
		b.WriteString("\n\n")
	}
	return b.String()
}

// isBoilerplate 行中任一单元格命中样板关键词
func (n *Normalizer) isBoilerplate(row []string) bool {
	for _, cell := range row {
		lower := strings.ToLower(cell)
		for _, term := range n.denylist {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

// cellLineBreaks 单元格内的换行会被tablewriter拆成多行
var cellLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// renderTable 以空白对齐的方式渲染表格
func renderTable(rows [][]string) string {
	flat := make([][]string, len(rows))
	for i, row := range rows {
		flat[i] = make([]string, len(row))
		for j, cell := range row {
			flat[i][j] = cellLineBreaks.Replace(cell)
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetRowLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(flat)
	table.Render()
	return strings.TrimRight(buf.String(), "\n")
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if !isBlank(cell) {
			return false
		}
	}
	return true
}

func isBlank(cell string) bool {
	return strings.TrimSpace(cell) == ""
}
