package product

import (
	"database/sql"

	"go.uber.org/zap"

	"storefront/internal/product/repository"
)

func NewModule(db *sql.DB, currency string, logger *zap.Logger) *Controller {
	repo := repository.NewMySQLRepository(db)
	svc := NewService(repo)
	uc := NewLookupUseCase(svc, currency)
	return NewController(uc, logger)
}
