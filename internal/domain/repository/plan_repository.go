package repository

import (
	"context"

	"github.com/lumeworks/billing-reconciler/internal/domain/model"
)

// PlanRepository reads immutable plan reference data.
type PlanRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Plan, error)
	GetByCode(ctx context.Context, code string) (*model.Plan, error)
}
