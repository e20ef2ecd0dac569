package document

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook 构造测试用工作簿，sheets按顺序创建
func buildWorkbook(t *testing.T, names []string, data map[string][][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range names {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range data[name] {
			if row == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

// TestNormalizeCompetitorWorkbook 测试样板行过滤和工作表顺序
func TestNormalizeCompetitorWorkbook(t *testing.T) {
	buf := buildWorkbook(t, []string{"Competitors", "Notes"}, map[string][][]interface{}{
		"Competitors": {
			{"Company", "City", "Revenue"},
			{"Madaen Real Estate", "Riyadh", "Signature: approved"},
			nil,
			{"Tamimi Group", "Jeddah", "5M revenue"},
		},
		"Notes": {
			{"Please read the Instructions first"},
			{"Market share", "12.5"},
		},
	})

	text, err := NewNormalizer().ParseReader(buf, "competitors.xlsx")
	require.NoError(t, err)

	assert.Contains(t, text, "### Sheet: Competitors")
	assert.Contains(t, text, "Tamimi Group")
	assert.Contains(t, text, "Jeddah")
	assert.NotContains(t, text, "Madaen Real Estate")
	assert.NotContains(t, text, "Signature")
	assert.NotContains(t, text, "Instructions")
	assert.Contains(t, text, "12.5")

	// 工作表顺序保持不变
	assert.Less(t, strings.Index(text, "### Sheet: Competitors"), strings.Index(text, "### Sheet: Notes"))
}

// TestCleanDropsEmptyRowsAndColumns 测试去除空行和空列
func TestCleanDropsEmptyRowsAndColumns(t *testing.T) {
	n := NewNormalizer()
	cleaned := n.Clean(Sheet{
		Name: "Data",
		Rows: [][]string{
			{"", "", ""},
			{"Acme", "", "10"},
			{},
			{"Globex", "  ", "20", ""},
		},
	})

	assert.Equal(t, [][]string{
		{"Acme", "10"},
		{"Globex", "20"},
	}, cleaned.Rows)
}

// TestCleanDenylistCaseInsensitive 测试样板关键词不区分大小写
func TestCleanDenylistCaseInsensitive(t *testing.T) {
	n := NewNormalizer()
	cleaned := n.Clean(Sheet{
		Name: "Data",
		Rows: [][]string{
			{"company website", "www.example.com"},
			{"Last UPDATE", "2024"},
			{"Topics DISCUSSED", "pricing"},
			{"Acme", "Riyadh"},
		},
	})

	// "UPDATE" 含有 "date" 子串，同样被视为样板行
	assert.Equal(t, [][]string{{"Acme", "Riyadh"}}, cleaned.Rows)
}

// TestNormalizeSkipsEmptySheets 测试清洗后为空的工作表不输出
func TestNormalizeSkipsEmptySheets(t *testing.T) {
	buf := buildWorkbook(t, []string{"Legal", "Data"}, map[string][][]interface{}{
		"Legal": {
			{"Signature", "________"},
			{"Address", "PO Box 1"},
		},
		"Data": {
			{"Acme", "42"},
		},
	})

	text, err := NewNormalizer().ParseReader(buf, "book.xlsx")
	require.NoError(t, err)
	assert.NotContains(t, text, "### Sheet: Legal")
	assert.Contains(t, text, "### Sheet: Data")
	assert.True(t, strings.HasSuffix(text, "\n\n"))
}

// TestNormalizeRawValues 测试单元格按原始值转为文本
func TestNormalizeRawValues(t *testing.T) {
	buf := buildWorkbook(t, []string{"Numbers"}, map[string][][]interface{}{
		"Numbers": {
			{"Acme", 1234567, 0.25, true},
		},
	})

	sheets, err := NewNormalizer().ReadSheets(buf, "numbers.xlsx")
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	require.Len(t, sheets[0].Rows, 1)
	assert.Equal(t, "Acme", sheets[0].Rows[0][0])
	assert.Equal(t, "1234567", sheets[0].Rows[0][1])
	assert.Equal(t, "0.25", sheets[0].Rows[0][2])
}

// TestNormalizeCustomDenylist 测试自定义样板关键词
func TestNormalizeCustomDenylist(t *testing.T) {
	n := NewNormalizer(WithDenylist("confidential"))
	cleaned := n.Clean(Sheet{
		Name: "Data",
		Rows: [][]string{
			{"CONFIDENTIAL draft"},
			{"Signature block"},
		},
	})
	assert.Equal(t, [][]string{{"Signature block"}}, cleaned.Rows)
}

// TestNormalizeInvalidInput 测试无法解析的输入返回ParseError
func TestNormalizeInvalidInput(t *testing.T) {
	_, err := NewNormalizer().ParseReader(strings.NewReader("not,a,workbook"), "broken.xlsx")
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "broken.xlsx", parseErr.File)
}

// TestParserFactory 测试根据扩展名选择解析器
func TestParserFactory(t *testing.T) {
	p, err := ParserFactory("Competitors.XLSX")
	require.NoError(t, err)
	assert.IsType(t, &Normalizer{}, p)

	_, err = ParserFactory("notes.pdf")
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

// TestNormalizeReportsSheets 测试返回非空工作表名称
func TestNormalizeReportsSheets(t *testing.T) {
	buf := buildWorkbook(t, []string{"Legal", "Data", "Prices"}, map[string][][]interface{}{
		"Legal":  {{"Signature"}},
		"Data":   {{"Acme", "42"}},
		"Prices": {{"Tamimi Group", "5"}},
	})

	doc, err := NewNormalizer().Normalize(buf, "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Data", "Prices"}, doc.Sheets)
	assert.Contains(t, doc.Text, "### Sheet: Prices")
}

// TestNormalizeMultilineCells 测试单元格内换行不拆分表格行
func TestNormalizeMultilineCells(t *testing.T) {
	buf := buildWorkbook(t, []string{"Competitors"}, map[string][][]interface{}{
		"Competitors": {
			{"Company", "Notes"},
			{"Tamimi Group", "Multi\nline"},
			{"Madaen", "Windows\r\nbreak"},
		},
	})

	text, err := NewNormalizer().ParseReader(buf, "competitors.xlsx")
	require.NoError(t, err)

	table := strings.TrimSpace(strings.TrimPrefix(text, "\n### Sheet: Competitors\n"))
	lines := strings.Split(table, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Tamimi Group")
	assert.Contains(t, lines[1], "Multi line")
	assert.Contains(t, lines[2], "Windows break")
	assert.NotContains(t, text, "\r")
}
