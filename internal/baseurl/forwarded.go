package baseurl

import "strings"

// forwardedValues 承载 RFC 7239 Forwarded 头中与链接构造相关的字段。
type forwardedValues struct {
	proto string
	host  string
	port  string
}

// parseForwarded 解析 Forwarded 头的第一个元素（最靠近客户端的代理记录）。
// 形如 `proto=https;host="pub.example.com";port=8443`，键不区分大小写，
// 引号会被剥除。解析不到任何相关字段时返回 ok=false，调用方回退到
// X-Forwarded-* 或字面请求值。
func parseForwarded(header string) (forwardedValues, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return forwardedValues{}, false
	}

	// 多个元素以逗号分隔，只取第一个。
	if idx := strings.Index(header, ","); idx >= 0 {
		header = header[:idx]
	}

	var values forwardedValues
	found := false

	for _, pair := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			continue
		}

		switch key {
		case "proto":
			values.proto = value
			found = true
		case "host":
			values.host = value
			found = true
		case "port":
			// port 并非 RFC 7239 标准键，但常见于反向代理配置。
			values.port = value
			found = true
		}
	}

	return values, found
}
