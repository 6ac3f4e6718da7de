package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// KeyFields 提供主键/命中键字段，供 restore/save 日志复用。matchedKey 为空时省略。
func KeyFields(primaryKey, matchedKey string) logrus.Fields {
	fields := logrus.Fields{
		"primary_key": primaryKey,
	}
	if matchedKey != "" {
		fields["matched_key"] = matchedKey
	}
	return fields
}
