package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"insight-service/pkg/errno"
)

// Response 统一响应包装
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Failed 根据错误类型返回失败响应
func Failed(ctx *gin.Context, err error) {
	var e *errno.Errno
	var biz *errno.BizError

	switch {
	case errors.As(err, &biz):
		ctx.JSON(httpStatus(biz.Errno.Code), Response{Code: biz.Errno.Code, Message: biz.Error()})
	case errors.As(err, &e):
		ctx.JSON(httpStatus(e.Code), Response{Code: e.Code, Message: e.Message})
	default:
		ctx.JSON(http.StatusInternalServerError, Response{
			Code:    errno.ErrInternalServer.Code,
			Message: err.Error(),
		})
	}
}

// httpStatus 业务码映射HTTP状态码，2xxxx业务错误统一返回400
func httpStatus(code int) int {
	switch {
	case code >= 20000:
		return http.StatusBadRequest
	case code >= 400 && code < 600:
		return code
	default:
		return http.StatusInternalServerError
	}
}
