package repository

import (
	"context"

	"telegram-video-courier/internal/domain/model"
)

// RunRepository persists finished run records for the admin API.
type RunRepository interface {
	Save(ctx context.Context, rec *model.RunRecord) error
	Recent(ctx context.Context, limit int) ([]*model.RunRecord, error)
}
