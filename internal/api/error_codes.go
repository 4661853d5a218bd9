// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"

	// 生成相关错误
	ErrorModelUnknown     = "MODEL_UNKNOWN"
	ErrorProviderConfig   = "PROVIDER_CONFIG_INVALID"
	ErrorVendorFailed     = "VENDOR_REQUEST_FAILED"
	ErrorScriptParse      = "SCRIPT_PARSE_FAILED"
	ErrorSynthesisFailed  = "SYNTHESIS_FAILED"
	ErrorAudioDecodeError = "AUDIO_DECODE_FAILED"

	// 草稿相关错误
	ErrorDraftNotFound = "DRAFT_NOT_FOUND"
	ErrorDraftInvalid  = "DRAFT_INVALID"

	// 账号与发布相关错误
	ErrorAccountNotFound = "ACCOUNT_NOT_FOUND"
	ErrorAccountInvalid  = "ACCOUNT_INVALID"
	ErrorPublishFailed   = "PUBLISH_FAILED"

	// 任务相关错误
	ErrorTaskNotFound = "TASK_NOT_FOUND"
)
