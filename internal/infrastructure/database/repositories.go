package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	adapterRepo "github.com/lumeworks/billing-reconciler/internal/adapter/repository"
	domainRepo "github.com/lumeworks/billing-reconciler/internal/domain/repository"
)

// Repositories holds all repository instances plus the transaction manager.
// Constructed once at startup and injected; nothing in the engine reaches
// for process-wide state.
type Repositories struct {
	Subscriptions domainRepo.SubscriptionRepository
	Plans         domainRepo.PlanRepository
	Payments      domainRepo.PaymentRepository
	Events        domainRepo.ProcessedEventRepository
	Tx            domainRepo.TxManager
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Subscriptions: adapterRepo.NewSubscriptionRepository(db, logger),
		Plans:         adapterRepo.NewPlanRepository(db, logger),
		Payments:      adapterRepo.NewPaymentRepository(db, logger),
		Events:        adapterRepo.NewProcessedEventRepository(db, logger),
		Tx:            adapterRepo.NewTxManager(db, logger),
	}
}
