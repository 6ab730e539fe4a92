package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig 为所有配置类错误的共同根，便于 errors.Is 判断。
	ErrConfig = errors.New("configuration error")
	// ErrMissingConfig 表示页面上找不到配置模板（可能被包在其他模板里）。
	ErrMissingConfig = errors.New("unable to find configuration, maybe wrapped in a template?")
	// ErrTargetNotFound 表示目标索引页不存在。
	ErrTargetNotFound = errors.New("does not exist")
	// ErrMissingSafeMarker 表示目标页缺少允许机器人清空的注释标记。
	ErrMissingSafeMarker = errors.New("missing safe string")
	// ErrNoThreads 表示所有掩码都没有找到任何讨论串，多半是配置错误。
	ErrNoThreads = errors.New("found 0 threads, misconfiguration?")
)

// ConfigError 为带页面上下文的配置错误。
type ConfigError struct {
	Page   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Page == "" {
		return e.Reason
	}
	return fmt.Sprintf("[[%s]]: %s", e.Page, e.Reason)
}

// Unwrap 同时暴露 ErrConfig 与内部原因。
func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

// NewConfigError 以格式化原因构造 ConfigError。
func NewConfigError(page, format string, args ...any) *ConfigError {
	return &ConfigError{Page: page, Reason: fmt.Sprintf(format, args...)}
}
