package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

// EmbeddingFunc 文本向量化函数
type EmbeddingFunc = chromem.EmbeddingFunc

// DefaultHashDimension 哈希向量默认维度
const DefaultHashDimension = 256

// NewHashEmbedder 确定性的特征哈希向量化，不依赖外部服务
//
// 小写分词后按 FNV-1a 落桶并做 L2 归一化，词面重叠越多相似度越高。
// 适用于离线运行与测试。
func NewHashEmbedder(dim int) EmbeddingFunc {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := make([]float32, dim)
		for _, tok := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			sum := h.Sum32()
			sign := float32(1)
			if sum&1 == 1 {
				sign = -1
			}
			vec[int(sum>>1)%dim] += sign
		}
		normalize(vec)
		return vec, nil
	}
}

// NewOpenAIEmbedder OpenAI text-embedding-3-small 向量化
func NewOpenAIEmbedder(apiKey string) EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// normalize 原地 L2 归一化；零向量置为单位向量以避免 NaN
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
