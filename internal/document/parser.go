package document

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将上传的文件解析为纯文本
type Parser interface {
	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)

	// Normalize 与ParseReader相同，同时返回保留下来的工作表名称
	Normalize(r io.Reader, filename string) (*Normalized, error)
}

// Normalized 规范化后的文档
type Normalized struct {
	Text   string   // 拼接后的文本
	Sheets []string // 非空工作表名称，按原始顺序
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// Workbook Excel工作簿
	Workbook ContentType = "xlsx"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filename string, opts ...NormalizerOption) (Parser, error) {
	switch DetectContentType(filename) {
	case Workbook:
		return NewNormalizer(opts...), nil
	default:
		return nil, NewParseError(filename, fmt.Errorf("unsupported document type %q", filepath.Ext(filename)))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filename string) ContentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return Workbook
	default:
		return Unknown
	}
}

// ParseError 工作簿无法解析为表格数据
type ParseError struct {
	File string // 文件名
	Err  error  // 底层错误
}

// Error 实现error接口
func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("parse error: %v", e.Err)
	}
	return fmt.Sprintf("parse error (%s): %v", e.File, e.Err)
}

// Unwrap 返回底层错误
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError 创建解析错误
func NewParseError(file string, err error) *ParseError {
	return &ParseError{File: file, Err: err}
}

// Sheet 清洗前后的工作表
type Sheet struct {
	Name string     // 工作表名称
	Rows [][]string // 单元格文本
}

// Empty 判断工作表是否没有任何数据
func (s Sheet) Empty() bool {
	return len(s.Rows) == 0
}

// Passage 规范化文本中的一个连续片段
type Passage struct {
	Index int    // 片段序号
	Start int    // 起始位置（按字符计）
	Text  string // 片段文本
}
