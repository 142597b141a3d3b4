package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// PackageFields 提供包 ID/版本字段，供索引与发布日志复用。
func PackageFields(action, packageID, version string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"package_id": packageID,
		"version":    version,
	}
}

// RequestFields 提供协议请求日志的公共字段。
func RequestFields(action, requestID, packageID string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"request_id": requestID,
		"package_id": packageID,
		"status":     status,
	}
}
