package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Record 字段名到标量值的映射.
type Record map[string]any

// Change 一次字段覆盖.
type Change struct {
	Field string
	Value any
}

// String 返回字符串字段，不存在或不是字符串时为空.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Int64 读取数值字段，兼容不同编解码器产生的数值类型.
func (r Record) Int64(field string) (int64, bool) {
	switch v := r[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}

		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}

			return int64(f), true
		}

		return n, true
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

// Expired 报告 ttl 是否早于 now；没有 ttl 的记录永不过期.
func (r Record) Expired(now time.Time) bool {
	ttl, ok := r.Int64(FieldTTL)
	return ok && ttl <= now.Unix()
}

// Clone 浅拷贝.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	return maps.Clone(r)
}

// Apply 依次应用 changes.
func (r Record) Apply(changes []Change) {
	for _, c := range changes {
		r[c.Field] = c.Value
	}
}
