// Package postgres holds the gorm-backed implementations of the domain
// repository interfaces. Every query that touches a soft-deletable table
// filters deleted_at explicitly; the models carry plain *time.Time
// columns so nothing is filtered implicitly.
package postgres

import (
	"errors"

	"gorm.io/gorm"
)

// notFound maps gorm's miss onto the domain sentinel so services never
// see a storage-layer error type.
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// isDuplicate relies on the postgres driver's error translation
// (TranslateError is set on connect).
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func totalPages(count int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := int(count) / pageSize
	if int(count)%pageSize != 0 {
		pages++
	}
	return pages
}
