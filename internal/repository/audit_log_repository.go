package repository

import (
	"context"

	"storefront/internal/domain/model"
)

//監査ログの絞り込み条件。

type AuditLogFilter struct {
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	Limit        int
	Offset       int
}

// 監査ログの保存・一覧取得の約束。
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	//新しい順
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
