package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if strings.TrimSpace(g.PackagesRoot) == "" {
		return newFieldError("PackagesRoot", "不能为空")
	}
	if g.ShutdownTimeout.DurationValue() <= 0 {
		return newFieldError("ShutdownTimeout", "必须大于 0")
	}

	if g.HasFixedBaseURL() {
		if err := validateBaseURL(g.BaseURL); err != nil {
			return fmt.Errorf("BaseUrl: %w", err)
		}
	}

	for _, proxy := range g.TrustedProxies {
		trimmed := strings.TrimSpace(proxy)
		if trimmed == "" {
			return newFieldError("TrustedProxies", "不允许出现空条目")
		}
		if net.ParseIP(trimmed) == nil {
			return newFieldError("TrustedProxies", fmt.Sprintf("无效的 IP 地址: %s", trimmed))
		}
	}

	return nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
