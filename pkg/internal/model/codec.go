package model

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrNotObject 请求体或存储值不是 JSON 对象.
var ErrNotObject = errors.New("value is not a JSON object")

// codec 整数解码为 int64，避免 createdAt/ttl 经过存储后变成浮点数.
var codec = sonic.Config{
	UseInt64:    true,
	SortMapKeys: true,
}.Froze()

// Encode 把记录编码为 JSON.
func Encode(rec Record) ([]byte, error) {
	b, err := codec.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return b, nil
}

// Decode 解析 JSON 对象；空输入视为空对象.
func Decode(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, nil
	}

	var v any
	if err := codec.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	if v == nil {
		return Record{}, nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	return Record(m), nil
}

// Marshal 使用同一编解码配置编码任意值，供响应体使用.
func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}
