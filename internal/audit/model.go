package audit

import "gorm.io/datatypes"

// DecisionModel 是决策审计的持久化行。指标快照整体存成 JSON，
// 列结构只保留查询会用到的维度。
type DecisionModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	EntryID    string         `gorm:"column:entry_id;uniqueIndex"`
	OrderID    string         `gorm:"column:order_id;index"`
	Timestamp  int64          `gorm:"column:ts;index"`
	Asset      string         `gorm:"column:asset;index"`
	Price      float64        `gorm:"column:price"`
	Strategy   string         `gorm:"column:strategy"`
	Decision   string         `gorm:"column:decision"`
	Result     string         `gorm:"column:result"`
	Indicators datatypes.JSON `gorm:"column:indicators;type:TEXT"`
	CreatedAt  int64          `gorm:"column:created_at"`
}

func (DecisionModel) TableName() string { return "decisions" }
