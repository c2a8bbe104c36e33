package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store 用 Gorm + SQLite 持久化决策记录，作为 CSV 之外的
// 可查询镜像：订单号关联与胜负回填只在这里发生。
type Store struct {
	db *gorm.DB
}

// NewStore 打开（或创建）审计数据库并完成迁移。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&DecisionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：留一点并发给 HTTP 端的只读查询。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert 写入一条新决策行。
func (s *Store) Insert(m *DecisionModel) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("audit store 未初始化")
	}
	return s.db.Create(m).Error
}

// AttachOrder 把订单号关联到已有决策行。
func (s *Store) AttachOrder(entryID, orderID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("audit store 未初始化")
	}
	return s.db.Model(&DecisionModel{}).
		Where("entry_id = ?", entryID).
		Update("order_id", orderID).Error
}

// ResolveResult 按订单号回填胜负。
func (s *Store) ResolveResult(orderID, result string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("audit store 未初始化")
	}
	return s.db.Model(&DecisionModel{}).
		Where("order_id = ?", orderID).
		Update("result", result).Error
}

// Recent 返回最近 limit 条决策，新→旧。
func (s *Store) Recent(limit int) ([]DecisionModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store 未初始化")
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []DecisionModel
	err := s.db.Order("ts DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
