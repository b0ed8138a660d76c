package model

import "time"

// 注文ステータス更新など。
type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//注文を作成した操作。
	AuditActionPlaceOrder AuditAction = "PLACE_ORDER"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder AuditResourceType = "order"
)

// 監査ログ。
// 「何を」「どの対象に」「どう変えたか」を残す。ActorUserIDは不明なら0。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ActorUserID int64 `gorm:"not null;index" json:"actorUserId"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resourceType"`

	ResourceID int64 `gorm:"not null;index" json:"resourceId"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
