// Package conv 提供类型转换与 YAML/JSON 配置 map 的取值工具。
package conv

import "strconv"

// ToFloat64 将 any 转为 float64。
// 支持各类整型/浮点、数字字符串；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int，浮点向零截断。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt YAML/JSON 常得到 int 或 float64，此处统一为 int。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if i, ok := ToInt(m[key]); ok {
		return i
	}
	return defaultVal
}

// ConfigGetStringSlice 取 []string；YAML 解析得到的 []any 中非字符串元素被跳过。
func ConfigGetStringSlice(m map[string]any, key string) []string {
	switch val := m[key].(type) {
	case []string:
		return val
	case []any:
		return ConvertSlice(val, func(e any) (string, bool) {
			s, ok := e.(string)
			return s, ok
		})
	default:
		return nil
	}
}
