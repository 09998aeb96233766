package migration

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Xingyelan/Vega-Registry/internal/connection"
	"github.com/Xingyelan/Vega-Registry/internal/events"
	"github.com/Xingyelan/Vega-Registry/internal/logging"
	"github.com/Xingyelan/Vega-Registry/internal/models"
	"github.com/Xingyelan/Vega-Registry/internal/prober"
)

var (
	// ErrNotLegacyConnection 连接已是动态形态，无需迁移
	ErrNotLegacyConnection = errors.New("connection is not a legacy connection")
	// ErrNoTargetProvider 找不到可接管旧式连接的目标供应商
	ErrNoTargetProvider = errors.New("no target provider found for legacy connection")
)

// ProviderSource 迁移所需的目录读取接口，由 catalog.Repository 满足
type ProviderSource interface {
	FindByID(id uint) (*models.Provider, error)
	FindByIdentifier(identifier string) (*models.Provider, error)
	ModelsForProvider(providerID uint) ([]*models.Model, error)
}

// Orchestrator 连接迁移编排器
// 负责把旧式（硬编码供应商）连接转换为动态供应商连接，
// 带备份、兼容性检查与自动回滚
type Orchestrator struct {
	conns     *connection.Repository
	connSvc   *connection.Service
	providers ProviderSource
	prober    *prober.Prober
	events    *events.Service
	logger    *logging.Logger
}

// NewOrchestrator 创建迁移编排器
func NewOrchestrator(conns *connection.Repository, connSvc *connection.Service, providers ProviderSource, pb *prober.Prober, eventService *events.Service, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		conns:     conns,
		connSvc:   connSvc,
		providers: providers,
		prober:    pb,
		events:    eventService,
		logger:    logger,
	}
}

// ==================== 计划 ====================

// PlanMigration 生成迁移计划
// 未指定目标供应商时，按旧供应商名匹配目录中同标识符的供应商
func (o *Orchestrator) PlanMigration(connectionID uint, targetProviderID *uint) (*MigrationPlan, error) {
	conn, err := o.conns.FindByID(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Kind != models.ConnectionKindLegacy {
		return nil, ErrNotLegacyConnection
	}

	target, err := o.resolveTarget(conn, targetProviderID)
	if err != nil {
		return nil, err
	}

	return &MigrationPlan{
		ConnectionID:     conn.ID,
		TargetProviderID: target.ID,
		TargetIdentifier: target.Identifier,
		Steps: []MigrationStep{
			{Name: "validate", Description: "测试现有旧式连接是否可用", EstimatedMs: 5000, Reversible: true},
			{Name: "backup", Description: "创建连接的时间点快照", EstimatedMs: 1000, Reversible: true},
			{Name: "convert", Description: "把专有凭证和模型字段转换为通用形态", EstimatedMs: 1000, Reversible: true},
			{Name: "test", Description: "用转换后的配置测试目标供应商", EstimatedMs: 5000, Reversible: true},
			{Name: "activate", Description: "写入动态连接并激活", EstimatedMs: 1000, Reversible: false},
		},
		Risks: []string{
			"service interruption while the connection is being rewritten",
			"configuration incompatibility between legacy and dynamic providers",
		},
		CreatedAt: time.Now(),
	}, nil
}

// ==================== 执行 ====================

// MigrateConnection 执行单个连接的迁移
// 备份之后的任何失败都会触发回滚；回滚失败单独记日志，
// 不覆盖原始错误
func (o *Orchestrator) MigrateConnection(connectionID uint, targetProviderID *uint) (*MigrationResult, error) {
	result := &MigrationResult{ConnectionID: connectionID}

	conn, err := o.conns.FindByID(connectionID)
	if err != nil {
		return o.fail(result, err)
	}
	if conn.Kind != models.ConnectionKindLegacy {
		return o.fail(result, ErrNotLegacyConnection)
	}

	target, err := o.resolveTarget(conn, targetProviderID)
	if err != nil {
		return o.fail(result, err)
	}

	// validate：确认旧连接本身可用
	creds, err := o.connSvc.DecryptedCredentials(conn)
	if err != nil {
		return o.fail(result, fmt.Errorf("failed to read legacy credentials: %w", err))
	}
	if err := o.testLegacy(conn, creds); err != nil {
		return o.fail(result, fmt.Errorf("legacy connection test failed: %w", err))
	}

	// backup：之后的失败都从这里回滚
	backupID, err := o.createBackup(conn, "pre-migration")
	if err != nil {
		return o.fail(result, fmt.Errorf("failed to create backup: %w", err))
	}
	result.BackupID = backupID

	// convert
	newCreds := convertCredentials(conn.LegacyProvider, creds)
	selected, err := conn.ParseSelectedModels()
	if err != nil {
		return o.failWithRollback(result, conn.ID, backupID, fmt.Errorf("failed to parse selected models: %w", err))
	}
	available, err := o.targetModelIdentifiers(target.ID)
	if err != nil {
		return o.failWithRollback(result, conn.ID, backupID, fmt.Errorf("failed to load target models: %w", err))
	}
	kept, dropped := convertModels(selected, available)
	if len(dropped) > 0 {
		o.logger.Warnf("迁移连接 %d 丢弃目标供应商未声明的模型: %s", conn.ID, strings.Join(dropped, ", "))
	}

	// test：用转换后的配置打目标供应商
	ctx, cancel := context.WithTimeout(context.Background(), o.prober.Timeout())
	probe := o.prober.Probe(ctx, target, &models.AuthConfig{Fields: newCreds})
	cancel()
	if !probe.Success {
		return o.failWithRollback(result, conn.ID, backupID, fmt.Errorf("target provider test failed: %s", probe.Error))
	}

	// activate：一次性写入动态形态
	conn.Kind = models.ConnectionKindDynamic
	conn.ProviderID = &target.ID
	if err := o.connSvc.SetCredentials(conn, newCreds); err != nil {
		return o.failWithRollback(result, conn.ID, backupID, fmt.Errorf("failed to store converted credentials: %w", err))
	}
	if err := conn.SetSelectedModels(kept); err != nil {
		return o.failWithRollback(result, conn.ID, backupID, err)
	}
	now := time.Now()
	conn.Status = models.ConnectionStatusActive
	conn.LastTestedAt = &now
	if err := o.conns.Update(conn); err != nil {
		return o.failWithRollback(result, conn.ID, backupID, fmt.Errorf("failed to activate connection: %w", err))
	}

	result.Success = true
	result.NewProviderID = target.ID
	result.CompletedAt = time.Now()
	o.logEvent(false, fmt.Sprintf("连接 %d 已迁移到供应商 %s", conn.ID, target.Identifier), map[string]interface{}{
		"connection_id": conn.ID,
		"provider_id":   target.ID,
		"backup_id":     backupID,
	})
	return result, nil
}

// ==================== 批量迁移 ====================

// BatchMigrate 顺序迁移一组连接
// 单个连接的 panic 或错误不会中断整批，除非 ContinueOnError 为 false
func (o *Orchestrator) BatchMigrate(connectionIDs []uint, opts BatchOptions) *BatchResult {
	batch := &BatchResult{}
	var mu sync.Mutex

	for i, id := range connectionIDs {
		stop := o.migrateOne(id, opts, batch, &mu)
		if stop && !opts.ContinueOnError {
			mu.Lock()
			batch.Skipped += len(connectionIDs) - i - 1
			mu.Unlock()
			break
		}
	}
	return batch
}

// migrateOne 处理批中的单个连接，返回是否失败
// recover 把 panic 隔离成一条失败记录
func (o *Orchestrator) migrateOne(id uint, opts BatchOptions, batch *BatchResult, mu *sync.Mutex) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			mu.Lock()
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("connection %d: panic: %v", id, r))
			mu.Unlock()
			failed = true
		}
	}()

	switch {
	case opts.DryRun:
		// 仅生成计划，永远计为成功，不产生任何变更
		if _, err := o.PlanMigration(id, nil); err != nil {
			mu.Lock()
			batch.Errors = append(batch.Errors, fmt.Sprintf("connection %d: %v", id, err))
			mu.Unlock()
		}
		mu.Lock()
		batch.Successful++
		mu.Unlock()
		return false

	case opts.ValidateOnly:
		report, err := o.CheckCompatibility(id, nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("connection %d: %v", id, err))
			return true
		}
		if !report.Compatible {
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("connection %d: incompatible with target provider", id))
			return true
		}
		batch.Successful++
		return false

	default:
		// 已是动态形态的连接跳过而不是失败
		if conn, err := o.conns.FindByID(id); err == nil && conn.Kind != models.ConnectionKindLegacy {
			mu.Lock()
			batch.Skipped++
			mu.Unlock()
			return false
		}

		result, err := o.MigrateConnection(id, nil)
		mu.Lock()
		defer mu.Unlock()
		if result != nil && result.BackupID != "" {
			batch.BackupsCreated = append(batch.BackupsCreated, result.BackupID)
		}
		if err != nil || result == nil || !result.Success {
			batch.Failed++
			msg := "unknown error"
			if err != nil {
				msg = err.Error()
			} else if result != nil && result.Error != "" {
				msg = result.Error
			}
			batch.Errors = append(batch.Errors, fmt.Sprintf("connection %d: %s", id, msg))
			return true
		}
		batch.Successful++
		return false
	}
}

// ==================== 兼容性检查 ====================

// CheckCompatibility 独立于执行的兼容性检查
// 问题只作为 warning 上报，附带处理建议，不阻断迁移
func (o *Orchestrator) CheckCompatibility(connectionID uint, targetProviderID *uint) (*CompatibilityReport, error) {
	conn, err := o.conns.FindByID(connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Kind != models.ConnectionKindLegacy {
		return nil, ErrNotLegacyConnection
	}

	target, err := o.resolveTarget(conn, targetProviderID)
	if err != nil {
		return nil, err
	}

	report := &CompatibilityReport{
		ConnectionID:     conn.ID,
		TargetProviderID: target.ID,
	}

	legacyName := strings.ToLower(conn.LegacyProvider)
	if target.Identifier != legacyName && !strings.HasPrefix(target.Identifier, legacyName) {
		report.Issues = append(report.Issues, CompatibilityIssue{
			Severity:   "warning",
			Field:      "provider",
			Message:    fmt.Sprintf("目标供应商 %q 与旧供应商 %q 标识符不一致", target.Identifier, conn.LegacyProvider),
			Resolution: "确认目标供应商服务于同一 API 家族，或显式指定其它目标",
		})
	}

	selected, err := conn.ParseSelectedModels()
	if err != nil {
		return nil, err
	}
	available, err := o.targetModelIdentifiers(target.ID)
	if err != nil {
		return nil, err
	}
	if _, dropped := convertModels(selected, available); len(dropped) > 0 {
		for _, model := range dropped {
			report.Issues = append(report.Issues, CompatibilityIssue{
				Severity:   "warning",
				Field:      "selected_models",
				Message:    fmt.Sprintf("模型 %q 未在目标供应商中声明", model),
				Resolution: "迁移时该模型会被移除；如需保留，先在目录中为目标供应商添加此模型",
			})
		}
	}

	report.Compatible = !report.HasBlockingIssues()
	return report, nil
}

// ==================== 内部实现 ====================

// resolveTarget 解析迁移目标：显式指定优先，否则按旧供应商名匹配标识符
func (o *Orchestrator) resolveTarget(conn *models.Connection, targetProviderID *uint) (*models.Provider, error) {
	if targetProviderID != nil {
		return o.providers.FindByID(*targetProviderID)
	}
	target, err := o.providers.FindByIdentifier(strings.ToLower(conn.LegacyProvider))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNoTargetProvider, conn.LegacyProvider)
	}
	return target, nil
}

// testLegacy 不落库地探测旧连接
func (o *Orchestrator) testLegacy(conn *models.Connection, creds map[string]string) error {
	provider, err := o.connSvc.ResolveProvider(conn)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.prober.Timeout())
	defer cancel()
	result := o.prober.Probe(ctx, provider, &models.AuthConfig{Fields: creds})
	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}

// createBackup 创建连接快照并返回 backupID
func (o *Orchestrator) createBackup(conn *models.Connection, reason string) (string, error) {
	snapshot, err := json.Marshal(conn)
	if err != nil {
		return "", err
	}
	backupID, err := newBackupID()
	if err != nil {
		return "", err
	}
	backup := &models.ConnectionBackup{
		BackupID:     backupID,
		ConnectionID: conn.ID,
		Snapshot:     string(snapshot),
		Reason:       reason,
	}
	if err := o.conns.CreateBackup(backup); err != nil {
		return "", err
	}
	return backupID, nil
}

// rollback 从快照恢复连接的持久化状态
func (o *Orchestrator) rollback(connectionID uint, backupID string) error {
	backup, err := o.conns.FindBackup(backupID)
	if err != nil {
		return err
	}
	var snapshot models.Connection
	if err := json.Unmarshal([]byte(backup.Snapshot), &snapshot); err != nil {
		return fmt.Errorf("failed to decode backup snapshot: %w", err)
	}
	if snapshot.ID != connectionID {
		return fmt.Errorf("backup %s does not belong to connection %d", backupID, connectionID)
	}
	return o.conns.Update(&snapshot)
}

// fail 填充失败结果，不涉及回滚
func (o *Orchestrator) fail(result *MigrationResult, err error) (*MigrationResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.CompletedAt = time.Now()
	return result, err
}

// failWithRollback 备份之后的失败路径：先回滚再返回原始错误
// 回滚失败记为更高级别的事件，但绝不覆盖原始错误
func (o *Orchestrator) failWithRollback(result *MigrationResult, connectionID uint, backupID string, cause error) (*MigrationResult, error) {
	if rbErr := o.rollback(connectionID, backupID); rbErr != nil {
		o.logger.Errorf("连接 %d 回滚失败 (backup=%s): %v", connectionID, backupID, rbErr)
		if o.events != nil {
			o.events.LogError(models.EventTypeRollback,
				fmt.Sprintf("连接 %d 回滚失败", connectionID),
				map[string]interface{}{"connection_id": connectionID, "backup_id": backupID, "error": rbErr.Error()})
		}
	} else {
		result.RolledBack = true
		o.logger.Infof("连接 %d 已从备份 %s 回滚", connectionID, backupID)
		if o.events != nil {
			o.events.LogWarning(models.EventTypeRollback,
				fmt.Sprintf("连接 %d 迁移失败，已回滚", connectionID),
				map[string]interface{}{"connection_id": connectionID, "backup_id": backupID, "error": cause.Error()})
		}
	}
	return o.fail(result, cause)
}

// logEvent 记录迁移事件
func (o *Orchestrator) logEvent(isError bool, message string, metadata map[string]interface{}) {
	if o.events == nil {
		return
	}
	if isError {
		o.events.LogError(models.EventTypeMigration, message, metadata)
	} else {
		o.events.LogInfo(models.EventTypeMigration, message, metadata)
	}
}

// newBackupID 生成唯一备份标识
func newBackupID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("bak-%d-%s", time.Now().Unix(), hex.EncodeToString(buf)), nil
}

// targetModelIdentifiers 读取目标供应商声明的模型标识符
func (o *Orchestrator) targetModelIdentifiers(providerID uint) ([]string, error) {
	list, err := o.providers.ModelsForProvider(providerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.Identifier)
	}
	return ids, nil
}
