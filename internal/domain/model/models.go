package model

// マイグレーション対象
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&InventoryAdjustment{},
		&AuditLog{},
	}
}
