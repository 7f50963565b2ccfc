package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"
	"gestorpos/internal/repository"
	"gestorpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SaleRef identifies a sale by id or by its per-owner code.
type SaleRef struct {
	ID   uuid.UUID
	Code int64
}

// ParseSaleRef accepts a uuid or a positive numeric code.
func ParseSaleRef(s string) (SaleRef, error) {
	if id, err := uuid.Parse(s); err == nil {
		return SaleRef{ID: id}, nil
	}
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil || code <= 0 {
		return SaleRef{}, validationf("ref", "%q is neither a sale id nor a sale code", s)
	}
	return SaleRef{Code: code}, nil
}

// BalancePreview is what the cart screen shows before submission.
type BalancePreview struct {
	Balance  model.Balance             `json:"balance"`
	Payments []model.PaymentAllocation `json:"payments"`
	Status   PaymentStatus             `json:"payment_status"`
}

// SaleCache is the read-through cache used by Get. Version is read before
// the store lookup; Set drops the write when an Evict happened in between.
type SaleCache interface {
	GetByID(ctx context.Context, owner string, id uuid.UUID) (*model.Sale, bool)
	GetByCode(ctx context.Context, owner string, code int64) (*model.Sale, bool)
	Version(ctx context.Context, owner string) int64
	Set(ctx context.Context, sale *model.Sale, version int64)
	Evict(ctx context.Context, owner string, id uuid.UUID, code int64) error
}

type SaleService interface {
	Preview(cart model.CartState) BalancePreview
	Register(ctx context.Context, cart model.CartState) (*SettlementResult, error)
	Update(ctx context.Context, owner string, ref SaleRef, cart model.CartState) (*SettlementResult, error)
	Cancel(ctx context.Context, owner string, ref SaleRef) (*SettlementResult, error)
	ChangeOperator(ctx context.Context, owner string, ref SaleRef, operator model.Person) (*SettlementResult, error)
	Get(ctx context.Context, owner string, ref SaleRef) (*model.Sale, error)
}

// SaleOptions are the tenant settings of the sale flow.
type SaleOptions struct {
	CreditPaymentCode string
	BillCategory      string
}

type saleService struct {
	ledgers    Ledgers
	settlement SettlementService
	opts       SaleOptions
	dispatcher *worker.Dispatcher
	cache      SaleCache
	now        func() time.Time
}

// NewSaleService wires the sale operations. dispatcher and cache may be nil.
func NewSaleService(ledgers Ledgers, settlement SettlementService, opts SaleOptions, dispatcher *worker.Dispatcher, cache SaleCache) SaleService {
	return &saleService{
		ledgers:    ledgers,
		settlement: settlement,
		opts:       opts,
		dispatcher: dispatcher,
		cache:      cache,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *saleService) composeOptions() ComposeOptions {
	return ComposeOptions{
		CreditPaymentCode: s.opts.CreditPaymentCode,
		BillCategory:      s.opts.BillCategory,
		Now:               s.now(),
	}
}

func (s *saleService) Preview(cart model.CartState) BalancePreview {
	cart = ApplyBalance(cart)
	return BalancePreview{
		Balance:  cart.Balance,
		Payments: cart.Payments,
		Status:   ReconcilePayments(cart.Payments, cart.Balance),
	}
}

// ── Register ──────────────────────────────────────────────────────────────────

func (s *saleService) Register(ctx context.Context, cart model.CartState) (*SettlementResult, error) {
	if cart.ID != uuid.Nil || cart.Code != 0 || cart.Source != nil {
		return nil, validationf("sale", "a registered sale must be updated, not registered again")
	}
	if cart.Operator.IsZero() {
		return nil, validationf("operator", "is required")
	}
	sale := ComposeSale(cart, s.composeOptions())
	res, err := s.settlement.RegisterSale(ctx, SettlementInput{
		Sale:             sale,
		Operation:        OpRegister,
		AllocateProducts: true,
	}, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sale.Owner, OpRegister, res)
	return res, nil
}

// ── Update ────────────────────────────────────────────────────────────────────

func (s *saleService) Update(ctx context.Context, owner string, ref SaleRef, cart model.CartState) (*SettlementResult, error) {
	source, err := s.load(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	if source.Status == model.SaleCanceled {
		return nil, validationf("status", "sale %d is canceled", source.Code)
	}

	cart.Owner = owner
	cart.ID = source.ID
	cart.Code = source.Code
	cart.Source = source
	if cart.Origin == "" {
		cart.Origin = source.Origin
	}
	sale := ComposeSale(cart, s.composeOptions())

	res, err := s.settlement.RegisterSale(ctx, SettlementInput{
		Sale:             sale,
		Source:           source,
		Operation:        OpUpdate,
		AllocateProducts: true,
	}, nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, owner, OpUpdate, res)
	return res, nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// The cancellation runs in a batch owned by this service so the settlement
// stages and the commit are visibly separate.

func (s *saleService) Cancel(ctx context.Context, owner string, ref SaleRef) (*SettlementResult, error) {
	source, err := s.load(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	if source.Status == model.SaleCanceled {
		return nil, validationf("status", "sale %d is already canceled", source.Code)
	}

	b := batch.New(s.ledgers.Sales.DB())
	res, err := s.settlement.RegisterSale(ctx, SettlementInput{
		Sale:             *source,
		Source:           source,
		Operation:        OpCancel,
		AllocateProducts: true,
	}, b)
	if err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, newConflict(err)
	}

	log.Info().Str("owner", owner).Int64("sale_code", res.Code).Msg("sale canceled")
	s.publish(ctx, owner, OpCancel, res)
	return res, nil
}

// ── ChangeOperator ────────────────────────────────────────────────────────────
// One batch: rewrite the operator on the stock movements, resettle the sale
// without touching inventory, and record the change in the audit log.

func (s *saleService) ChangeOperator(ctx context.Context, owner string, ref SaleRef, operator model.Person) (*SettlementResult, error) {
	if operator.IsZero() {
		return nil, validationf("operator", "is required")
	}
	source, err := s.load(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	if source.Status == model.SaleCanceled {
		return nil, validationf("status", "sale %d is canceled", source.Code)
	}

	b := batch.New(s.ledgers.Sales.DB())
	if err := s.ledgers.Stock.StageOperatorChange(ctx, b, owner, source.Code, operator); err != nil {
		b.Fail(err)
		return nil, &StageError{Stage: "stock", Err: err}
	}

	sale := *source
	sale.Operator = operator
	res, err := s.settlement.RegisterSale(ctx, SettlementInput{
		Sale:             sale,
		Source:           source,
		Operation:        OpUpdate,
		AllocateProducts: false,
	}, b)
	if err != nil {
		return nil, err
	}

	err = s.ledgers.Audit.StageEntry(ctx, b, repository.AuditEntry{
		Owner:      owner,
		Collection: repository.CollectionSales,
		Action:     model.AuditChangeOperator,
		Reference:  res.CodeRef,
		Operator:   operator,
		Data: map[string]model.Person{
			"from": source.Operator,
			"to":   operator,
		},
	})
	if err != nil {
		b.Fail(err)
		return nil, &StageError{Stage: "audit_log", Err: err}
	}

	if err := b.Commit(ctx); err != nil {
		return nil, newConflict(err)
	}
	s.publish(ctx, owner, OpUpdate, res)
	return res, nil
}

// ── Get ───────────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, owner string, ref SaleRef) (*model.Sale, error) {
	var version int64
	if s.cache != nil {
		var (
			sale *model.Sale
			ok   bool
		)
		if ref.ID != uuid.Nil {
			sale, ok = s.cache.GetByID(ctx, owner, ref.ID)
		} else {
			sale, ok = s.cache.GetByCode(ctx, owner, ref.Code)
		}
		if ok {
			return sale, nil
		}
		version = s.cache.Version(ctx, owner)
	}

	sale, err := s.load(ctx, owner, ref)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, sale, version)
	}
	return sale, nil
}

func (s *saleService) load(ctx context.Context, owner string, ref SaleRef) (*model.Sale, error) {
	if owner == "" {
		return nil, validationf("owner", "is required")
	}
	var (
		sale *model.Sale
		err  error
	)
	switch {
	case ref.ID != uuid.Nil:
		sale, err = s.ledgers.Sales.FindByID(ctx, owner, ref.ID)
	case ref.Code > 0:
		sale, err = s.ledgers.Sales.FindByCode(ctx, owner, ref.Code)
	default:
		return nil, validationf("ref", "id or code is required")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// publish evicts the cached copies and enqueues the post-commit event. Best
// effort: the sale is already durable, so failures are only logged.
func (s *saleService) publish(ctx context.Context, owner string, op Operation, res *SettlementResult) {
	if res == nil {
		return
	}
	if s.cache != nil {
		if err := s.cache.Evict(ctx, owner, res.SaleID, res.Code); err != nil {
			log.Warn().Err(err).Str("owner", owner).Int64("sale_code", res.Code).Msg("sale cache not evicted")
		}
	}
	if s.dispatcher == nil {
		return
	}
	ev := worker.SaleEvent{
		Owner:     owner,
		SaleID:    res.SaleID,
		Code:      res.Code,
		Operation: string(op),
		Status:    string(res.Status),
	}
	if err := s.dispatcher.EnqueueSaleEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("owner", owner).Int64("sale_code", res.Code).Msg("sale event not published")
	}
}
