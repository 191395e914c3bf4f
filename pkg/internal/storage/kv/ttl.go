package kv

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// 没有原生按键过期能力的后端（NATS KV）使用的过期包装.
const ttlMagic = "AVTTL1:"

type ttlValue struct {
	V []byte `json:"v"`
	E int64  `json:"e,omitempty"` // unix seconds; 0 means no expiry
}

// encodeWithExpiry 在 expireAt>0 时包装值，否则原样返回.
func encodeWithExpiry(value []byte, expireAt int64) ([]byte, error) {
	if expireAt <= 0 {
		return value, nil
	}

	b, err := sonic.Marshal(ttlValue{V: value, E: expireAt})
	if err != nil {
		return nil, fmt.Errorf("marshal ttl value: %w", err)
	}

	return append([]byte(ttlMagic), b...), nil
}

// decodeWithExpiry 识别包装并判断是否过期，返回 (value, expired, error).
func decodeWithExpiry(b []byte, now time.Time) ([]byte, bool, error) {
	if !bytes.HasPrefix(b, []byte(ttlMagic)) {
		return b, false, nil
	}

	var tv ttlValue
	if err := sonic.Unmarshal(b[len(ttlMagic):], &tv); err != nil {
		return nil, false, fmt.Errorf("unmarshal ttl value: %w", err)
	}

	if tv.E > 0 && now.Unix() >= tv.E {
		return nil, true, nil
	}

	return tv.V, false, nil
}
