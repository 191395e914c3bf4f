package rule

// MissingFields 返回 data 中缺失或为空值的字段名，顺序与 fields 一致.
// 空值判定沿用 validator 的 required 规则（nil、空字符串、零值）.
func MissingFields(data map[string]any, fields ...string) []string {
	lazyInit()

	var missing []string

	for _, f := range fields {
		v, ok := data[f]
		if !ok || v == nil || inst.Var(v, "required") != nil {
			missing = append(missing, f)
		}
	}

	return missing
}
