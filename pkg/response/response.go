package response

import (
	"log/slog"
	"net/http"

	"talentpay/internal/apperr"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
	CodeBusy         = 503
)

// 业务错误码（按错误分类分段）
//
//	1xxx 状态冲突  2xxx 资金不足  3xxx 越权  4xxx 策略  5xxx 参数
const (
	CodeAlreadyDeposited          = 1001
	CodeAlreadyExecuted           = 1002
	CodeInvalidTransition         = 1003
	CodeConcurrentUpdate          = 1004
	CodeIdempotencyConflict       = 1005
	CodeInsufficientEscrowBalance = 2001
	CodeInsufficientBalance       = 2002
	CodeExceedsHeldAmount         = 2003
	CodeNotLeader                 = 3001
	CodeNotWalletOwner            = 3002
	CodeInvalidPolicy             = 4001
	CodeMissingLeader             = 4002
	CodeInvalidAmount             = 5001
)

var businessCodes = map[string]int{
	apperr.ErrAlreadyDeposited.Code:          CodeAlreadyDeposited,
	apperr.ErrAlreadyExecuted.Code:           CodeAlreadyExecuted,
	apperr.ErrInvalidTransition.Code:         CodeInvalidTransition,
	apperr.ErrConcurrentUpdate.Code:          CodeConcurrentUpdate,
	apperr.ErrIdempotencyConflict.Code:       CodeIdempotencyConflict,
	apperr.ErrInsufficientEscrowBalance.Code: CodeInsufficientEscrowBalance,
	apperr.ErrInsufficientBalance.Code:       CodeInsufficientBalance,
	apperr.ErrExceedsHeldAmount.Code:         CodeExceedsHeldAmount,
	apperr.ErrNotLeader.Code:                 CodeNotLeader,
	apperr.ErrNotWalletOwner.Code:            CodeNotWalletOwner,
	apperr.ErrForbidden.Code:                 CodeForbidden,
	apperr.ErrInvalidPolicy.Code:             CodeInvalidPolicy,
	apperr.ErrMissingLeader.Code:             CodeMissingLeader,
	apperr.ErrInvalidAmount.Code:             CodeInvalidAmount,
	apperr.ErrInvalidInput.Code:              CodeParamError,
	apperr.ErrBusy.Code:                      CodeBusy,
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindPolicy:            http.StatusBadRequest,
	apperr.KindAuthorization:     http.StatusForbidden,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindStateConflict:     http.StatusConflict,
	apperr.KindInsufficientFunds: http.StatusUnprocessableEntity,
	apperr.KindUnavailable:       http.StatusServiceUnavailable,
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"` // 机器可读的错误码，如 EXCEEDS_HELD_AMOUNT
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

// FromError 把服务层错误转换成响应
// 类型化错误按分类映射状态码；其余视为内部错误，不把细节暴露给调用方
func FromError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("内部错误", "path", c.Request.URL.Path, "err", err)
		ServerError(c, "服务器内部错误")
		return
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	code, ok := businessCodes[e.Code]
	if !ok {
		code = status
	}

	c.JSON(status, Response{
		Code:    code,
		Message: err.Error(),
		Error:   e.Code,
	})
}
