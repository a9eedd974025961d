package database

import (
	"errors"

	"gorm.io/gorm"
)

// Session 一次请求内的数据库会话。Begin 之后 DB 返回事务句柄，
// 请求结束时未提交的事务会被回滚。
type Session struct {
	db *gorm.DB
	tx *gorm.DB
}

// DB 返回当前句柄，事务中返回事务
func (s *Session) DB() *gorm.DB {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Begin 开启事务，已开启时直接返回
func (s *Session) Begin() (*gorm.DB, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	s.tx = tx
	return tx, nil
}

// InTransaction 是否存在未结束的事务
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Commit 提交事务
func (s *Session) Commit() error {
	if s.tx == nil {
		return errors.New("database: commit without transaction")
	}
	err := s.tx.Commit().Error
	s.tx = nil
	return err
}

// Rollback 回滚事务，没有事务时什么也不做
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback().Error
	s.tx = nil
	return err
}

// Close 由请求作用域在清理时调用
func (s *Session) Close() error {
	return s.Rollback()
}
