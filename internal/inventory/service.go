// Package inventory owns items and their stock, allocation and image
// ledgers. Item quantities only change through the reconciler methods.
package inventory

import (
	"time"

	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/lock"
	"dhuni-backend/internal/storage"

	"gorm.io/gorm"
)

type Limits struct {
	MaxUploadBytes   int64
	MaxImagesPerItem int
}

type Service struct {
	db        *gorm.DB
	customers *customer.Service
	store     storage.ObjectStore
	locker    lock.Locker
	limits    Limits
	now       func() time.Time
}

func NewService(db *gorm.DB, customers *customer.Service, store storage.ObjectStore, locker lock.Locker, limits Limits) *Service {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = 5 << 20
	}
	if limits.MaxImagesPerItem <= 0 {
		limits.MaxImagesPerItem = 5
	}
	return &Service{
		db:        db,
		customers: customers,
		store:     store,
		locker:    locker,
		limits:    limits,
		now:       time.Now,
	}
}
