// Package repository is the persistence collaborator of the connector. Every
// catalog write is an upsert on a tenant (or parent) scoped external id.
package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrStateNotFound      = errors.New("oauth state not found or expired")
	ErrSyncRunNotFound    = errors.New("sync run not found")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}
