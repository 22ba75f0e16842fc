package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Feature 错误：音频特征缺失、特征服务不可用
//   - Summarizer / Persistence：外部协作方不可用（调用方降级处理）
//   - 参数错误：INVALID_INPUT
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_SUPPORTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "cluster"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 沿错误链查找 DomainError，找不到返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeNotSupported  = "NOT_SUPPORTED"
	ErrorCodeUnavailable   = "UNAVAILABLE"
	ErrorCodeInvalidInput  = "INVALID_INPUT"
	ErrorCodeInternalError = "INTERNAL_ERROR"
)

// 模块名称常量
const (
	ModuleStore      = "store"
	ModuleFeature    = "feature"
	ModuleModel      = "model"
	ModuleRecommend  = "recommend"
	ModuleCluster    = "cluster"
	ModuleEval       = "eval"
	ModuleSummarizer = "summarizer"
	ModulePersist    = "persist"
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// InvalidInput 构造参数错误
func InvalidInput(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidInput, message)
}

var (
	// ErrNoFeatures 表示输入集合中没有任何可用的音频特征
	ErrNoFeatures = NewDomainError(ModuleFeature, ErrorCodeNotFound, "feature: no audio features available")

	// ErrSummarizerUnavailable 表示未配置或无法访问文本摘要服务
	ErrSummarizerUnavailable = NewDomainError(ModuleSummarizer, ErrorCodeUnavailable, "summarizer: unavailable")
)
