package migration

import "time"

// ==================== 迁移计划 ====================

// MigrationStep 迁移计划中的单个步骤
type MigrationStep struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EstimatedMs int64  `json:"estimated_ms"`
	Reversible  bool   `json:"reversible"`
}

// MigrationPlan 一次迁移尝试的执行计划
// 步骤固定为五步：validate → backup → convert → test → activate
type MigrationPlan struct {
	ConnectionID     uint            `json:"connection_id"`
	TargetProviderID uint            `json:"target_provider_id"`
	TargetIdentifier string          `json:"target_identifier"`
	Steps            []MigrationStep `json:"steps"`
	Risks            []string        `json:"risks"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MigrationResult 单个连接的迁移结果
type MigrationResult struct {
	ConnectionID  uint      `json:"connection_id"`
	Success       bool      `json:"success"`
	NewProviderID uint      `json:"new_provider_id,omitempty"`
	BackupID      string    `json:"backup_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	RolledBack    bool      `json:"rolled_back,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ==================== 批量迁移 ====================

// BatchOptions 批量迁移选项
type BatchOptions struct {
	DryRun          bool `json:"dry_run"`           // 仅生成计划，不做任何变更
	ValidateOnly    bool `json:"validate_only"`     // 仅做兼容性检查，不做任何变更
	ContinueOnError bool `json:"continue_on_error"` // false 时首次失败即停止
}

// BatchResult 批量迁移的聚合结果
type BatchResult struct {
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
	BackupsCreated []string `json:"backups_created"`
}

// ==================== 兼容性检查 ====================

// CompatibilityIssue 兼容性问题条目
// 所有条目均为 warning 级别，附带可读的处理建议
type CompatibilityIssue struct {
	Severity   string `json:"severity"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Resolution string `json:"resolution"`
}

// CompatibilityReport 兼容性检查报告
// Compatible = 不存在 error 级别的问题
type CompatibilityReport struct {
	ConnectionID     uint                 `json:"connection_id"`
	TargetProviderID uint                 `json:"target_provider_id"`
	Compatible       bool                 `json:"compatible"`
	Issues           []CompatibilityIssue `json:"issues"`
}

// HasBlockingIssues 是否存在 error 级别的问题
func (r *CompatibilityReport) HasBlockingIssues() bool {
	for _, issue := range r.Issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
