package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter 计算文本的 token 数量
type Counter interface {
	CountTokens(text string) int
}

// ====== Estimator ======

const (
	// 平均 1 个 token ≈ 4 个字符（英文），中文约 1.5 个字符
	englishCharsPerToken = 4.0
	chineseCharsPerToken = 1.5
)

// Estimator 基于字符数的估算，不依赖编码数据
type Estimator struct{}

// CountTokens 估算 token 数，非空文本至少 1 个
func (Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var chinese, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			chinese++
		} else {
			other++
		}
	}
	return int(float64(chinese)/chineseCharsPerToken+float64(other)/englishCharsPerToken) + 1
}

// ====== Tiktoken ======

const (
	encodingCL100K = "cl100k_base"
	encodingO200K  = "o200k_base"
)

// modelEncodings 模型名前缀到 tiktoken 编码
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", encodingO200K},
	{"o1", encodingO200K},
	{"o3", encodingO200K},
	{"gpt-4", encodingCL100K},
	{"gpt-3.5", encodingCL100K},
}

// EncodingForModel 返回模型使用的编码，未知模型回退到 cl100k_base
func EncodingForModel(model string) string {
	model = strings.ToLower(model)
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			return m.encoding
		}
	}
	return encodingCL100K
}

// Tiktoken 基于 tiktoken 的计数器
//
// 编码在首次计数时加载（可能需要下载 BPE 数据）；加载失败后
// 退化为 Estimator，不影响调用方。
type Tiktoken struct {
	encoding string
	fallback Estimator

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken 为模型创建计数器
func NewTiktoken(model string) *Tiktoken {
	return &Tiktoken{encoding: EncodingForModel(model)}
}

// Name 计数器名称
func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Err 编码加载错误，未加载或加载成功时为 nil
func (t *Tiktoken) Err() error {
	return t.initErr
}

// CountTokens 计算 token 数
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}
