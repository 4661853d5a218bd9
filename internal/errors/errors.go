// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 生成链路错误分类
	ErrorTypeConfiguration ErrorType = "configuration_error" // 缺少密钥/未知模型，未发起网络调用
	ErrorTypeVendor        ErrorType = "vendor_error"        // 提供商返回非成功响应
	ErrorTypeStorage       ErrorType = "storage_error"       // 持久化写入失败（配额等），就地恢复
	ErrorTypeDecode        ErrorType = "decode_error"        // 音频负载无法解码，按行恢复

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewConfigurationError 创建配置错误（不经过网络，立即可见）
func NewConfigurationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, originalError)
}

// NewVendorError 创建提供商错误，尽量携带供应商原始消息
func NewVendorError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeVendor, message, originalError)
}

// NewStorageError 创建存储错误
func NewStorageError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeStorage, message, originalError)
}

// NewDecodeError 创建解码错误
func NewDecodeError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeDecode, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool {
	return typeOf(err) == ErrorTypeConfiguration
}

// IsVendorError 检查是否为提供商错误
func IsVendorError(err error) bool {
	return typeOf(err) == ErrorTypeVendor
}

// IsStorageError 检查是否为存储错误
func IsStorageError(err error) bool {
	return typeOf(err) == ErrorTypeStorage
}

// IsDecodeError 检查是否为解码错误
func IsDecodeError(err error) bool {
	return typeOf(err) == ErrorTypeDecode
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return typeOf(err) == ErrorTypeNotFound
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return typeOf(err) == ErrorTypeValidation
}

func typeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	case ErrorTypeVendor:
		return "VENDOR_ERROR"
	case ErrorTypeStorage:
		return "STORAGE_ERROR"
	case ErrorTypeDecode:
		return "DECODE_ERROR"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
