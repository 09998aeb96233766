package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/gin-gonic/gin"
)

// ConnectionHandler 连接 HTTP 处理器
type ConnectionHandler struct {
	service *connection.Service
}

// NewConnectionHandler 创建 ConnectionHandler 实例
func NewConnectionHandler(service *connection.Service) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// CreateConnection 创建连接
// @Summary 创建连接
// @Tags connections
// @Accept json
// @Produce json
// @Param connection body connection.CreateConnectionRequest true "连接信息"
// @Success 201 {object} models.Connection
// @Failure 400 {object} catalog.ErrorResponse
// @Router /api/connections [post]
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req connection.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	conn, err := h.service.CreateConnection(req)
	if err != nil {
		switch {
		case errors.Is(err, connection.ErrInvalidInput):
			errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		case errors.Is(err, catalog.ErrProviderNotFound):
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Provider not found", nil)
		default:
			errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create connection", nil)
		}
		return
	}
	c.JSON(http.StatusCreated, conn)
}

// GetConnection 获取单个连接
// @Summary 获取单个连接
// @Tags connections
// @Produce json
// @Param id path int true "连接 ID"
// @Success 200 {object} models.Connection
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/connections/{id} [get]
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conn, err := h.service.GetConnection(id)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get connection", nil)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// ListConnections 获取用户的连接列表
// @Summary 获取连接列表
// @Tags connections
// @Produce json
// @Param user_id query int true "用户 ID"
// @Success 200 {array} models.Connection
// @Router /api/connections [get]
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_ID", "Invalid user_id parameter", nil)
		return
	}

	list, err := h.service.ListConnections(uint(userID))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list connections", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": len(list)})
}

// UpdateConnection 更新连接
// @Summary 更新连接
// @Tags connections
// @Accept json
// @Produce json
// @Param id path int true "连接 ID"
// @Param connection body connection.UpdateConnectionRequest true "更新信息"
// @Success 200 {object} models.Connection
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/connections/{id} [put]
func (h *ConnectionHandler) UpdateConnection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req connection.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	conn, err := h.service.UpdateConnection(id, req)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update connection", nil)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// DeleteConnection 删除连接
// @Summary 删除连接
// @Tags connections
// @Param id path int true "连接 ID"
// @Success 204 "No Content"
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/connections/{id} [delete]
func (h *ConnectionHandler) DeleteConnection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteConnection(id); err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete connection", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// TestConnection 测试连接连通性
// @Summary 测试连接
// @Tags connections
// @Produce json
// @Param id path int true "连接 ID"
// @Success 200 {object} prober.ProbeResult
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/connections/{id}/test [post]
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.service.TestConnection(id)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
			return
		}
		if result == nil {
			errorJSON(c, http.StatusInternalServerError, "TEST_FAILED", "Connection test could not run", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, result)
}
