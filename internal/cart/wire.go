package cart

import (
	"go.uber.org/zap"

	"storefront/internal/docstore"
)

func NewModule(store docstore.Store, logger *zap.Logger) *Controller {
	return NewController(NewUseCase(NewRepository(store), logger), logger)
}
