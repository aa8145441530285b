package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/dineflow/pkg/apperr"
	"github.com/d60-Lab/dineflow/pkg/logger"
)

// Response 统一响应包装
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Success: false, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Response{Success: false, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Response{Success: false, Message: msg})
}

func InternalError(c *gin.Context, err error) {
	logger.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Success: false, Message: "internal server error"})
}

// FromError 按错误类别映射 HTTP 状态码
func FromError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvalidTransition, apperr.KindInvalidSignature:
		BadRequest(c, err.Error())
	case apperr.KindNotFound:
		NotFound(c, err.Error())
	case apperr.KindUpstreamGateway:
		logger.Error("gateway error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, Response{Success: false, Message: "payment gateway unavailable"})
	default:
		InternalError(c, err)
	}
}
