package model

import (
	"time"
)

// RecordRow SQL 记录存储的行模型：一张表承载所有逻辑表，(table, id) 唯一.
// 记录本体以 JSON 文本存储，ttl 单独建列便于清理过期数据.
type RecordRow struct {
	// Bucket 逻辑表名，对应 store.users_table / store.assets_table
	Bucket string `gorm:"primaryKey;size:255"   json:"bucket"`
	ID     string `gorm:"primaryKey;size:512"   json:"id"`
	Data   string `gorm:"type:text;not null"    json:"data"`
	TTL    int64  `gorm:"index"                 json:"ttl"`
	// 审计
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 固定物理表名.
func (RecordRow) TableName() string {
	return "assetvault_records"
}
