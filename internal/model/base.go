package model

import "time"

// BaseModel 通用主键与时间戳（所有业务模型嵌入）
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"           json:"id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// All 返回需要建表的全部模型，按外键依赖顺序排列
func All() []interface{} {
	return []interface{}{
		&User{},
		&Volunteer{},
		&Schedule{},
		&Notification{},
	}
}
