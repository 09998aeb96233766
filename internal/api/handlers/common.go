package handlers

import (
	"strconv"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/gin-gonic/gin"
)

// errorJSON 按统一错误信封返回
func errorJSON(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, catalog.ErrorResponse{
		Error: catalog.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// parseIDParam 解析路径中的数字 ID，失败时已写入 400 响应
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		errorJSON(c, 400, "INVALID_ID", "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return uint(id), true
}
