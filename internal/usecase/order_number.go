package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 現在の時間
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// 注文番号を作る約束（一意性は保存時の一意制約で保証）
type OrderNumberGenerator interface {
	Next(now time.Time) string
}

// ORD-<unix millis>-<英数9文字>
type UUIDOrderNumber struct{}

func (UUIDOrderNumber) Next(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
