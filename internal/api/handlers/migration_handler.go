package handlers

import (
	"errors"
	"net/http"

	"github.com/Xingyelan/Vega-Registry/internal/catalog"
	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/Xingyelan/Vega-Registry/internal/migration"
	"github.com/gin-gonic/gin"
)

// MigrationHandler 连接迁移 HTTP 处理器
type MigrationHandler struct {
	orchestrator *migration.Orchestrator
}

// NewMigrationHandler 创建 MigrationHandler 实例
func NewMigrationHandler(orchestrator *migration.Orchestrator) *MigrationHandler {
	return &MigrationHandler{orchestrator: orchestrator}
}

// MigrationRequest 单连接迁移/计划/兼容性检查请求
type MigrationRequest struct {
	ConnectionID     uint  `json:"connection_id" binding:"required"`
	TargetProviderID *uint `json:"target_provider_id"`
}

// BatchMigrationRequest 批量迁移请求
type BatchMigrationRequest struct {
	ConnectionIDs []uint                 `json:"connection_ids" binding:"required,min=1"`
	Options       migration.BatchOptions `json:"options"`
}

// PlanMigration 生成迁移计划
// @Summary 生成迁移计划
// @Tags migrations
// @Accept json
// @Produce json
// @Param request body MigrationRequest true "迁移请求"
// @Success 200 {object} migration.MigrationPlan
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/migration/plan [post]
func (h *MigrationHandler) PlanMigration(c *gin.Context) {
	var req MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	plan, err := h.orchestrator.PlanMigration(req.ConnectionID, req.TargetProviderID)
	if err != nil {
		h.writeMigrationError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// MigrateConnection 执行单个连接的迁移
// @Summary 迁移连接
// @Tags migrations
// @Accept json
// @Produce json
// @Param request body MigrationRequest true "迁移请求"
// @Success 200 {object} migration.MigrationResult
// @Failure 400 {object} catalog.ErrorResponse
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/migration/migrate [post]
func (h *MigrationHandler) MigrateConnection(c *gin.Context) {
	var req MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	result, err := h.orchestrator.MigrateConnection(req.ConnectionID, req.TargetProviderID)
	if err != nil {
		// 迁移失败仍返回 200：结果对象里带着失败原因和回滚情况
		if result != nil {
			c.JSON(http.StatusOK, result)
			return
		}
		h.writeMigrationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BatchMigrate 批量迁移连接
// @Summary 批量迁移
// @Tags migrations
// @Accept json
// @Produce json
// @Param request body BatchMigrationRequest true "批量迁移请求"
// @Success 200 {object} migration.BatchResult
// @Failure 400 {object} catalog.ErrorResponse
// @Router /api/migration/batch [post]
func (h *MigrationHandler) BatchMigrate(c *gin.Context) {
	var req BatchMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	result := h.orchestrator.BatchMigrate(req.ConnectionIDs, req.Options)
	c.JSON(http.StatusOK, result)
}

// CheckCompatibility 兼容性检查
// @Summary 兼容性检查
// @Tags migrations
// @Accept json
// @Produce json
// @Param request body MigrationRequest true "检查请求"
// @Success 200 {object} migration.CompatibilityReport
// @Failure 404 {object} catalog.ErrorResponse
// @Router /api/migration/compatibility [post]
func (h *MigrationHandler) CheckCompatibility(c *gin.Context) {
	var req MigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	report, err := h.orchestrator.CheckCompatibility(req.ConnectionID, req.TargetProviderID)
	if err != nil {
		h.writeMigrationError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeMigrationError 迁移领域错误到 HTTP 状态码的映射
func (h *MigrationHandler) writeMigrationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, connection.ErrConnectionNotFound):
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Connection not found", nil)
	case errors.Is(err, catalog.ErrProviderNotFound), errors.Is(err, migration.ErrNoTargetProvider):
		errorJSON(c, http.StatusNotFound, "NO_TARGET_PROVIDER", "Target provider not found", err.Error())
	case errors.Is(err, migration.ErrNotLegacyConnection):
		errorJSON(c, http.StatusBadRequest, "NOT_LEGACY", "Connection is not a legacy connection", nil)
	default:
		errorJSON(c, http.StatusInternalServerError, "MIGRATION_FAILED", "Migration operation failed", err.Error())
	}
}
