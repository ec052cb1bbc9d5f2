package memory

import "errors"

var (
	// ErrUnsupportedValue 后端无法存储该类型的值
	ErrUnsupportedValue = errors.New("memory: unsupported value")

	// ErrKeyRequired 键不能为空
	ErrKeyRequired = errors.New("memory: key is required")
)
