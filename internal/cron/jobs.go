package cron

import (
	"context"

	"gorm.io/gorm"
)

// txRunner opens the transaction a job does its writes in.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
