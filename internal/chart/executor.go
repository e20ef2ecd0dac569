package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Figure 一张渲染好的图表
type Figure struct {
	Name string `json:"name"`
	PNG  []byte `json:"png"`
}

// Result 一次执行的产物
type Result struct {
	Figures  []Figure      `json:"figures"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// Executor 图表代码执行器
type Executor interface {
	// Execute 在隔离目录中运行代码并收集生成的图表
	Execute(ctx context.Context, code string, opts ...RunOption) (*Result, error)
}

// Config 执行器配置
type Config struct {
	Enabled        bool          // 是否启用
	Interpreter    string        // 解释器路径
	Timeout        time.Duration // 单次执行超时
	MaxOutputBytes int           // 保留的最大输出字节数
	TempDir        string        // 临时目录的父目录，为空时使用系统默认
}

// DefaultConfig 返回默认配置，默认不启用
func DefaultConfig() Config {
	return Config{
		Interpreter:    "python3",
		Timeout:        30 * time.Second,
		MaxOutputBytes: 64 * 1024,
	}
}

// RunOption 单次执行的选项
type RunOption func(*runOptions)

type runOptions struct {
	workbook string
}

// WithWorkbook 设置df读取的工作簿路径
func WithWorkbook(path string) RunOption {
	return func(o *runOptions) {
		o.workbook = path
	}
}

// NewExecutor 根据配置创建执行器
func NewExecutor(cfg Config, logger *logrus.Logger) Executor {
	if !cfg.Enabled {
		return disabledExecutor{}
	}
	defaults := DefaultConfig()
	if cfg.Interpreter == "" {
		cfg.Interpreter = defaults.Interpreter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaults.MaxOutputBytes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PythonExecutor{cfg: cfg, logger: logger}
}

type disabledExecutor struct{}

func (disabledExecutor) Execute(context.Context, string, ...RunOption) (*Result, error) {
	return nil, newExecutionError(ErrCodeDisabled, "chart execution is disabled")
}

// PythonExecutor 通过子进程运行Python图表代码
// 代码只能看到前导脚本声明的 pd、plt、sns、df 和 WORKBOOK
type PythonExecutor struct {
	cfg    Config
	logger *logrus.Logger
}

// Execute 实现Executor接口
func (e *PythonExecutor) Execute(ctx context.Context, code string, opts ...RunOption) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = newExecutionError(ErrCodePanic, "executor panic: %v", r)
		}
	}()

	if strings.TrimSpace(code) == "" {
		return nil, newExecutionError(ErrCodeEmptyCode, "no chart code to execute")
	}

	ro := &runOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	workDir, err := os.MkdirTemp(e.cfg.TempDir, "chart-*")
	if err != nil {
		return nil, newExecutionError(ErrCodeSetup, "failed to create work dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	outDir := filepath.Join(workDir, "figures")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, newExecutionError(ErrCodeSetup, "failed to create figure dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "chart_code.py"), []byte(code), 0o600); err != nil {
		return nil, newExecutionError(ErrCodeSetup, "failed to write chart code: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "runner.py"), []byte(runnerScript), 0o600); err != nil {
		return nil, newExecutionError(ErrCodeSetup, "failed to write runner: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.Interpreter, "runner.py")
	cmd.Dir = workDir
	cmd.Env = e.environment(workDir, outDir, ro.workbook)
	out := newCappedBuffer(e.cfg.MaxOutputBytes)
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	logger := e.logger.WithFields(logrus.Fields{
		"interpreter": e.cfg.Interpreter,
		"duration_ms": duration.Milliseconds(),
	})

	if runErr != nil {
		execErr := e.classify(runCtx, runErr)
		execErr.Output = out.String()
		logger.WithError(execErr).Warn("Chart code execution failed")
		return nil, execErr
	}

	figures, err := collectFigures(outDir)
	if err != nil {
		return nil, newExecutionError(ErrCodeSetup, "failed to collect figures: %v", err)
	}

	logger.WithField("figures", len(figures)).Info("Chart code executed")
	return &Result{Figures: figures, Output: out.String(), Duration: duration}, nil
}

// environment 子进程只继承PATH，其余变量由执行器指定
func (e *PythonExecutor) environment(workDir, outDir, workbook string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + workDir,
		"MPLBACKEND=Agg",
		"MPLCONFIGDIR=" + workDir,
		"PYTHONDONTWRITEBYTECODE=1",
		"CHART_OUTPUT_DIR=" + outDir,
		"CHART_WORKBOOK=" + workbook,
	}
}

func (e *PythonExecutor) classify(ctx context.Context, err error) ExecutionError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newExecutionError(ErrCodeTimeout, "chart code timed out after %s", e.cfg.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return newExecutionError(ErrCodeRuntime, "chart code exited with status %d", exitErr.ExitCode())
	}
	return newExecutionError(ErrCodeInterpreter, "failed to start interpreter: %v", err)
}

// collectFigures 按文件名顺序枚举生成的PNG
func collectFigures(dir string) ([]Figure, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	figures := make([]Figure, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		figures = append(figures, Figure{Name: filepath.Base(path), PNG: data})
	}
	return figures, nil
}

// cappedBuffer 只保留前max个字节
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{max: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.max - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n...[truncated]"
	}
	return b.buf.String()
}
