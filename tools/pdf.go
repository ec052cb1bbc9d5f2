package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/agentcrew/types"
	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
)

const (
	// PDFReaderToolName pdf_reader 工具名称
	PDFReaderToolName = "pdf_reader"
	// PDFWriterToolName pdf_writer 工具名称
	PDFWriterToolName = "pdf_writer"

	// DefaultPDFMaxChars pdf_reader 默认返回的最大字符数
	DefaultPDFMaxChars = 20000
)

// resolvePath 相对路径基于 baseDir 解析
func resolvePath(baseDir string, params map[string]any) (string, error) {
	raw, ok := params["file_path"]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: missing 'file_path' parameter", ErrInvalidParameters)
	}
	path, ok := raw.(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: 'file_path' must be a non-empty string", ErrInvalidParameters)
	}
	if baseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path), nil
}

// =============================================================================
// 📄 pdf_reader
// =============================================================================

// PDFReaderTool 提取 PDF 的纯文本
type PDFReaderTool struct {
	baseDir string
}

var _ types.Tool = (*PDFReaderTool)(nil)

// NewPDFReaderTool 创建 pdf_reader，baseDir 为空时相对路径基于工作目录
func NewPDFReaderTool(baseDir string) *PDFReaderTool {
	return &PDFReaderTool{baseDir: baseDir}
}

func (t *PDFReaderTool) Name() string { return PDFReaderToolName }

func (t *PDFReaderTool) Description() string {
	return "Extracts the plain text of a PDF document."
}

func (t *PDFReaderTool) ParameterSchema() map[string]string {
	return map[string]string{
		"file_path": "Path of the PDF file to read.",
		"max_chars": fmt.Sprintf("Optional maximum number of characters to return. Defaults to %d.", DefaultPDFMaxChars),
	}
}

func (t *PDFReaderTool) Use(ctx context.Context, params map[string]any) (string, error) {
	path, err := resolvePath(t.baseDir, params)
	if err != nil {
		return "", err
	}
	maxChars := DefaultPDFMaxChars
	if raw, ok := params["max_chars"]; ok && raw != nil {
		n, ok := raw.(float64)
		if !ok || n < 1 {
			return "", fmt.Errorf("%w: 'max_chars' must be a positive number", ErrInvalidParameters)
		}
		maxChars = int(n)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := readPDFText(path)
	if err != nil {
		return "", err
	}
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars])
	}
	return text, nil
}

func readPDFText(path string) (text string, err error) {
	// 解析器遇到损坏的内容流会 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf %s: malformed document: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// 🖨️ pdf_writer
// =============================================================================

// PDFWriterTool 将文本写入单栏 A4 PDF，按换行分行，超长行自动折行
type PDFWriterTool struct {
	baseDir string
}

var _ types.Tool = (*PDFWriterTool)(nil)

// NewPDFWriterTool 创建 pdf_writer，baseDir 为空时相对路径基于工作目录
func NewPDFWriterTool(baseDir string) *PDFWriterTool {
	return &PDFWriterTool{baseDir: baseDir}
}

func (t *PDFWriterTool) Name() string { return PDFWriterToolName }

func (t *PDFWriterTool) Description() string {
	return "Creates a PDF document from text. Newlines start new lines."
}

func (t *PDFWriterTool) ParameterSchema() map[string]string {
	return map[string]string{
		"text":      "The text content to write into the PDF.",
		"file_path": "The path (including file name) where the PDF will be saved.",
	}
}

func (t *PDFWriterTool) Use(ctx context.Context, params map[string]any) (string, error) {
	text, ok := params["text"].(string)
	if !ok || text == "" {
		return "", fmt.Errorf("%w: 'text' must be a non-empty string", ErrInvalidParameters)
	}
	path, err := resolvePath(t.baseDir, params)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create directory for %s: %w", path, err)
		}
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(18, 18, 18)
	doc.AddPage()
	doc.SetFont("Courier", "", 12)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		doc.MultiCell(0, 6, tr(line), "", "L", false)
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf %s: %w", path, err)
	}
	return "PDF saved to " + path, nil
}
