package bizerr

// Result 是对外返回的统一结构，失败时携带稳定错误码，不会出现部分成功。
type Result struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(data any) Result {
	return Result{Success: true, Data: data}
}

// Failure 把错误转换为结果。未知错误只暴露 SYSTEM_ERROR，细节留在日志里。
func Failure(err error) Result {
	if e, ok := As(err); ok {
		return Result{Success: false, Code: e.Code, Message: e.Message}
	}
	return Result{Success: false, Code: SystemErrorCode, Message: "system error"}
}
