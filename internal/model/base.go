package model

import (
	"time"

	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HardModel 无软删除，题目树按级联物理删除
type HardModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AllModels 迁移顺序即外键依赖顺序
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserProfile{},
		&Quiz{},
		&Question{},
		&Answer{},
		&Description{},
		&Results{},
		&QuizResultAnswer{},
		&Report{},
		&Comment{},
	}
}
