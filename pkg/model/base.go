package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 基础模型，替代 gorm.Model，使用自增主键
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LogModel 追加型记录的基础模型，只有创建时间，不支持更新与软删除
type LogModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
