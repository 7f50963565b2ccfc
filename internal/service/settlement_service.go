package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"
	"gestorpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Operation is the kind of settlement call.
type Operation string

const (
	OpRegister Operation = "register"
	OpUpdate   Operation = "update"
	OpCancel   Operation = "cancel"
)

func (o Operation) auditAction() model.AuditAction {
	switch o {
	case OpRegister:
		return model.AuditRegister
	case OpCancel:
		return model.AuditCancel
	default:
		return model.AuditUpdate
	}
}

// SettlementInput is one call of the orchestrator. Source is the last
// committed snapshot; it is loaded by id or (owner, code) when nil on
// updates and cancellations.
type SettlementInput struct {
	Sale             model.Sale
	Source           *model.Sale
	Operation        Operation
	AllocateProducts bool
}

// SettlementResult carries the identifiers resolved by the commit. When the
// batch is owned by the caller, Code and RegisterDate are filled in once the
// caller commits; CodeRef can be handed to further stages meanwhile.
type SettlementResult struct {
	SaleID       uuid.UUID
	Code         int64
	RegisterDate *time.Time
	Status       model.SaleStatus
	Concluded    bool
	CodeRef      *batch.PendingRef[int64] `json:"-"`
}

type SettlementService interface {
	// RegisterSale stages every write of the sale into one batch and commits
	// it. When external is non-nil the caller owns the batch and commits it.
	RegisterSale(ctx context.Context, in SettlementInput, external *batch.Batch) (*SettlementResult, error)
}

// Ledgers groups the adapters a settlement stages into.
type Ledgers struct {
	Sales      repository.SaleRepository
	Counters   repository.CounterRepository
	Stock      repository.StockRepository
	Bank       repository.BankRepository
	Bills      repository.ReceivableBillRepository
	WorkOrders repository.WorkOrderRepository
	Requests   repository.RequestRepository
	Audit      repository.AuditLogRepository
}

type settlementService struct {
	ledgers Ledgers
	now     func() time.Time

	// default bank account per owner, memoized for the life of the service
	mu       sync.Mutex
	defaults map[string]model.BankAccountRef
}

func NewSettlementService(ledgers Ledgers) SettlementService {
	return &settlementService{
		ledgers:  ledgers,
		now:      func() time.Time { return time.Now().UTC() },
		defaults: make(map[string]model.BankAccountRef),
	}
}

// ── RegisterSale ──────────────────────────────────────────────────────────────
//   1. Resolve the previous snapshot and validate the status transition
//   2. Open a batch (or use the caller's) and resolve the document reference
//   3. Stage stock, linked entities, bill, bank and audit concurrently
//   4. Stage the sale document, then commit once when the batch is ours

func (s *settlementService) RegisterSale(ctx context.Context, in SettlementInput, external *batch.Batch) (*SettlementResult, error) {
	sale := in.Sale
	if sale.Owner == "" {
		return nil, validationf("owner", "is required")
	}

	source := in.Source
	if source == nil && in.Operation != OpRegister {
		var err error
		if source, err = s.loadSource(ctx, sale); err != nil {
			return nil, err
		}
	}
	if source != nil {
		if in.Operation == OpRegister {
			return nil, validationf("sale", "sale %d is already registered", source.Code)
		}
		sale.ID = source.ID
		sale.Code = source.Code
		sale.RegisterDate = source.RegisterDate
	}
	if in.Operation == OpCancel {
		sale.Status = model.SaleCanceled
	} else if sale.Balance.TotalSale.IsZero() {
		sale.Status = model.SaleConcluded
		if sale.PaymentDate == nil {
			now := s.now()
			sale.PaymentDate = &now
		}
	}
	if source != nil && !source.Status.CanTransition(sale.Status) {
		return nil, validationf("status", "cannot move sale %d from %s to %s", source.Code, source.Status, sale.Status)
	}
	if source != nil && source.Status == model.SaleConcluded && source.PaymentDate != nil && sale.Status == model.SaleConcluded {
		sale.PaymentDate = source.PaymentDate
	}
	if in.Operation != OpCancel {
		if err := uniquePaymentCodes(sale.Payments); err != nil {
			return nil, err
		}
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}

	b := external
	if b == nil {
		b = batch.New(s.ledgers.Sales.DB())
	}

	refs := repository.DocumentRefs{IsNew: source == nil}
	if refs.IsNew {
		refs.Code = b.Sequence(s.ledgers.Counters, sale.Owner, repository.CollectionSales)
		refs.RegisterDate = b.Timestamp()
	} else {
		refs.Code = batch.Resolved(repository.CollectionSales, sale.Code)
	}

	billPlan := s.planBill(in.Operation, &sale, source)
	if billPlan.create {
		refs.BillCode = b.Sequence(s.ledgers.Counters, sale.Owner, repository.CollectionReceivableBills)
	}

	payments, err := s.stage(ctx, b, in, &sale, source, refs, billPlan)
	if err != nil {
		b.Fail(err)
		log.Warn().Err(err).
			Str("owner", sale.Owner).
			Int64("sale_code", sale.Code).
			Str("operation", string(in.Operation)).
			Msg("settlement staging failed")
		return nil, err
	}
	sale.Payments = payments
	sale.BillToReceive = nil
	s.ledgers.Sales.StageSave(b, sale, refs)

	result := &SettlementResult{
		SaleID:       sale.ID,
		Code:         sale.Code,
		RegisterDate: sale.RegisterDate,
		Status:       sale.Status,
		Concluded:    sale.Status == model.SaleConcluded,
		CodeRef:      refs.Code,
	}
	b.OnCommit(func() {
		if code, err := refs.Code.Value(); err == nil {
			result.Code = code
		}
		if refs.RegisterDate != nil {
			if at, err := refs.RegisterDate.Value(); err == nil {
				result.RegisterDate = &at
			}
		}
	})

	if external != nil {
		return result, nil
	}
	if err := b.Commit(ctx); err != nil {
		log.Error().Err(err).
			Str("owner", sale.Owner).
			Int64("sale_code", sale.Code).
			Str("operation", string(in.Operation)).
			Msg("settlement commit failed")
		return nil, newConflict(err)
	}

	log.Info().
		Str("owner", sale.Owner).
		Int64("sale_code", result.Code).
		Str("operation", string(in.Operation)).
		Str("status", string(result.Status)).
		Msg("sale settled")
	return result, nil
}

func (s *settlementService) loadSource(ctx context.Context, sale model.Sale) (*model.Sale, error) {
	var (
		src *model.Sale
		err error
	)
	switch {
	case sale.ID != uuid.Nil:
		src, err = s.ledgers.Sales.FindByID(ctx, sale.Owner, sale.ID)
	case sale.Code != 0:
		src, err = s.ledgers.Sales.FindByCode(ctx, sale.Owner, sale.Code)
	default:
		return nil, validationf("sale", "id or code is required")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	return src, err
}

// stage runs the independent staging steps concurrently. It returns the
// payments with their resolved bank accounts and posting history.
func (s *settlementService) stage(ctx context.Context, b *batch.Batch, in SettlementInput, sale *model.Sale, source *model.Sale, refs repository.DocumentRefs, bill billPlan) ([]model.PaymentAllocation, error) {
	g, gctx := errgroup.WithContext(ctx)
	snapshot := *sale
	var payments []model.PaymentAllocation

	if in.AllocateProducts {
		g.Go(func() error {
			deltas, err := inventoryDeltas(in.Operation, snapshot, source)
			if err != nil || len(deltas) == 0 {
				return err
			}
			action := model.StockSale
			if in.Operation == OpCancel {
				action = model.StockSaleCancel
			}
			return stageErr("stock", s.ledgers.Stock.StageDeltas(gctx, b, repository.StockEntry{
				Owner:     snapshot.Owner,
				BranchID:  snapshot.BranchID,
				Action:    action,
				Deltas:    deltas,
				Reference: refs.Code,
				Operator:  snapshot.Operator,
			}))
		})
	}

	g.Go(func() error {
		return s.stageLinked(gctx, b, in.Operation, snapshot, source, refs.Code)
	})

	g.Go(func() error {
		return s.stageBill(gctx, b, snapshot, bill, refs)
	})

	g.Go(func() error {
		postings, updated, err := s.planPostings(gctx, in.Operation, snapshot, source)
		if err != nil {
			return err
		}
		payments = updated
		if len(postings) == 0 {
			return nil
		}
		return stageErr("bank", s.ledgers.Bank.StagePostings(gctx, b, postings, refs.Code))
	})

	g.Go(func() error {
		return stageErr("audit_log", s.ledgers.Audit.StageEntry(gctx, b, repository.AuditEntry{
			Owner:      snapshot.Owner,
			Collection: repository.CollectionSales,
			Action:     in.Operation.auditAction(),
			Reference:  refs.Code,
			Operator:   snapshot.Operator,
			Data:       auditData(snapshot),
		}))
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payments, nil
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ── Inventory ────────────────────────────────────────────────────────────

// inventoryDeltas computes the signed stock change per product code. A new
// sale takes stock out, a cancellation returns it and an edit applies the
// difference against the previous snapshot.
func inventoryDeltas(op Operation, sale model.Sale, source *model.Sale) ([]model.StockDelta, error) {
	current, order, err := quantitiesByCode(sale.Products, "products")
	if err != nil {
		return nil, err
	}

	var deltas []model.StockDelta
	switch {
	case op == OpCancel:
		for _, code := range order {
			deltas = append(deltas, model.StockDelta{ProductCode: code, Quantity: current[code]})
		}
	case source == nil:
		for _, code := range order {
			deltas = append(deltas, model.StockDelta{ProductCode: code, Quantity: current[code].Neg()})
		}
	default:
		prior, priorOrder, err := quantitiesByCode(source.Products, "source.products")
		if err != nil {
			return nil, err
		}
		for _, code := range order {
			before, ok := prior[code]
			if !ok {
				deltas = append(deltas, model.StockDelta{ProductCode: code, Quantity: current[code].Neg()})
				continue
			}
			if !before.Equal(current[code]) {
				deltas = append(deltas, model.StockDelta{ProductCode: code, Quantity: before.Sub(current[code])})
			}
		}
		for _, code := range priorOrder {
			if _, ok := current[code]; !ok {
				deltas = append(deltas, model.StockDelta{ProductCode: code, Quantity: prior[code]})
			}
		}
	}

	out := deltas[:0]
	for _, d := range deltas {
		if !d.Quantity.IsZero() {
			out = append(out, d)
		}
	}
	return out, nil
}

func quantitiesByCode(items []model.LineItem, field string) (map[string]decimal.Decimal, []string, error) {
	qty := make(map[string]decimal.Decimal, len(items))
	var order []string
	for i, item := range items {
		if item.Quantity == nil {
			return nil, nil, validationf(field, "line %d (%s) has no numeric quantity", i, item.Code)
		}
		if _, seen := qty[item.Code]; !seen {
			order = append(order, item.Code)
		}
		qty[item.Code] = qty[item.Code].Add(*item.Quantity)
	}
	return qty, order, nil
}

// ── Bank postings ────────────────────────────────────────────────────────

// planPostings decides the postings of this call. New sales post every
// allocation, edits post the change per payment code, cancellations reverse
// what the history shows as posted.
func (s *settlementService) planPostings(ctx context.Context, op Operation, sale model.Sale, source *model.Sale) ([]repository.PostingDraft, []model.PaymentAllocation, error) {
	now := s.now()
	payments := make([]model.PaymentAllocation, len(sale.Payments))
	copy(payments, sale.Payments)

	prior := make(map[string]model.PaymentAllocation)
	if source != nil {
		for _, p := range source.Payments {
			prior[p.Code] = p
		}
	}

	var drafts []repository.PostingDraft
	post := func(i int, p *model.PaymentAllocation, gross decimal.Decimal) error {
		if gross.IsZero() {
			return nil
		}
		account, err := s.resolveAccount(ctx, sale.Owner, p, prior[p.Code])
		if errors.Is(err, errNoDefaultAccount) {
			return validationf("payments", "payment %d (%s): %v", i, p.Code, err)
		}
		if err != nil {
			return stageErr("bank", err)
		}
		p.BankAccount = &account
		p.History = append(append([]model.PostingHistory(nil), p.History...), model.PostingHistory{Date: now, Value: gross})
		if d, ok := postingDraft(sale.Owner, account, *p, gross, string(op)); ok {
			drafts = append(drafts, d)
		}
		return nil
	}

	switch op {
	case OpCancel:
		for i := range payments {
			if err := post(i, &payments[i], payments[i].Posted().Neg()); err != nil {
				return nil, nil, err
			}
		}
		return drafts, payments, nil

	default:
		seen := make(map[string]bool, len(payments))
		for i := range payments {
			p := &payments[i]
			seen[p.Code] = true
			gross := p.Value
			if before, ok := prior[p.Code]; ok {
				gross = p.Value.Sub(before.Value)
				if len(p.History) == 0 {
					p.History = before.History
				}
				if p.BankAccount == nil {
					p.BankAccount = before.BankAccount
				}
			}
			if err := post(i, p, gross); err != nil {
				return nil, nil, err
			}
		}
		if source != nil {
			for i, p := range source.Payments {
				if seen[p.Code] || p.Value.IsZero() {
					continue
				}
				removed := p
				if err := post(i, &removed, p.Value.Neg()); err != nil {
					return nil, nil, err
				}
			}
		}
		return drafts, payments, nil
	}
}

var errNoDefaultAccount = errors.New("no bank account selected and no default account configured")

// uniquePaymentCodes rejects carts carrying one payment method twice; edits
// are diffed per method code.
func uniquePaymentCodes(payments []model.PaymentAllocation) error {
	seen := make(map[string]int, len(payments))
	for i, p := range payments {
		if first, ok := seen[p.Code]; ok {
			return validationf("payments", "payment %d repeats method %q of payment %d", i, p.Code, first)
		}
		seen[p.Code] = i
	}
	return nil
}

// postingDraft nets the processor fee out of positive gross values; negative
// values post at face value. A fully absorbed value posts nothing.
func postingDraft(owner string, account model.BankAccountRef, p model.PaymentAllocation, gross decimal.Decimal, op string) (repository.PostingDraft, bool) {
	d := repository.PostingDraft{
		Owner:       owner,
		Account:     account,
		Uninvoiced:  p.Uninvoiced,
		PaymentCode: p.Code,
		Operation:   op,
	}
	if gross.IsNegative() {
		d.Direction = model.Withdraw
		d.Value = gross.Neg()
		return d, true
	}
	d.Direction = model.Deposit
	d.Value = NetValue(gross, p.ProcessorFee())
	return d, d.Value.IsPositive()
}

// NetValue subtracts pct% from gross, floored at zero.
func NetValue(gross, pct decimal.Decimal) decimal.Decimal {
	net := gross.Sub(model.PercentOf(gross, pct)).Round(2)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

func (s *settlementService) resolveAccount(ctx context.Context, owner string, p *model.PaymentAllocation, prior model.PaymentAllocation) (model.BankAccountRef, error) {
	if p.BankAccount != nil && p.BankAccount.ID != uuid.Nil {
		return *p.BankAccount, nil
	}
	if prior.BankAccount != nil && prior.BankAccount.ID != uuid.Nil {
		return *prior.BankAccount, nil
	}
	return s.defaultAccount(ctx, owner)
}

func (s *settlementService) defaultAccount(ctx context.Context, owner string) (model.BankAccountRef, error) {
	s.mu.Lock()
	ref, ok := s.defaults[owner]
	s.mu.Unlock()
	if ok {
		return ref, nil
	}

	account, err := s.ledgers.Bank.FindDefaultAccount(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && account == nil) {
		return model.BankAccountRef{}, errNoDefaultAccount
	}
	if err != nil {
		return model.BankAccountRef{}, err
	}

	ref = account.Ref()
	s.mu.Lock()
	s.defaults[owner] = ref
	s.mu.Unlock()
	return ref, nil
}

// ── Linked entities ──────────────────────────────────────────────────────

func (s *settlementService) stageLinked(ctx context.Context, b *batch.Batch, op Operation, sale model.Sale, source *model.Sale, code *batch.PendingRef[int64]) error {
	if sale.Origin == model.OriginRequest && op != OpRegister && sale.RequestCode != nil {
		err := s.ledgers.Requests.StageSaleMirror(ctx, b, sale.Owner, *sale.RequestCode, code, sale.Status)
		if err != nil {
			return stageErr("request", err)
		}
	}

	if sale.Origin != model.OriginServiceOrder || sale.ServiceCode == nil {
		return nil
	}
	update := repository.WorkOrderUpdate{Owner: sale.Owner, Code: *sale.ServiceCode, SaleCode: code}
	switch {
	case op == OpCancel:
		update.ServiceStatus = model.WorkOrderServiceCanceled
		update.PaymentStatus = model.WorkOrderPaymentCanceled
	case sale.Status == model.SaleConcluded && (source == nil || source.Status != model.SaleConcluded):
		update.ServiceStatus = model.WorkOrderServiceConcluded
		update.PaymentStatus = model.WorkOrderPaymentPaid
	default:
		return nil
	}
	return stageErr("work_order", s.ledgers.WorkOrders.StageStatus(ctx, b, update))
}

// ── Receivable bill ──────────────────────────────────────────────────────

type billPlan struct {
	create bool
	update bool
	cancel bool
	// code of the existing bill, when there is one
	code *int64
}

// planBill decides what happens to the receivable bill. A sale without a bill
// draft that still carries the bill code keeps its bill untouched; one that
// lost both had its credit allocation dropped, and the bill is canceled.
func (s *settlementService) planBill(op Operation, sale *model.Sale, source *model.Sale) billPlan {
	var code *int64
	if source != nil {
		code = source.BillToReceiveCode
	}
	keep := sale.BillToReceiveCode != nil
	sale.BillToReceiveCode = code

	switch {
	case op == OpCancel:
		return billPlan{cancel: code != nil, code: code}
	case sale.BillToReceive != nil && code == nil:
		return billPlan{create: true}
	case sale.BillToReceive != nil:
		return billPlan{update: true, code: code}
	case code != nil && !keep:
		sale.BillToReceiveCode = nil
		return billPlan{cancel: true, code: code}
	}
	return billPlan{}
}

func (s *settlementService) stageBill(ctx context.Context, b *batch.Batch, sale model.Sale, plan billPlan, refs repository.DocumentRefs) error {
	var err error
	switch {
	case plan.create:
		err = s.ledgers.Bills.StageCreate(ctx, b, *sale.BillToReceive, refs.BillCode, refs.Code)
	case plan.update:
		bill := *sale.BillToReceive
		bill.Owner = sale.Owner
		bill.Code = *plan.code
		bill.ReferenceCode = sale.Code
		err = s.ledgers.Bills.StageUpdate(ctx, b, bill)
	case plan.cancel:
		err = s.ledgers.Bills.StageCancel(ctx, b, sale.Owner, *plan.code)
	}
	return stageErr("receivable_bill", err)
}

// ── Audit log ────────────────────────────────────────────────────────────

type auditPayload struct {
	SaleID    uuid.UUID        `json:"sale_id"`
	Status    model.SaleStatus `json:"status"`
	Origin    model.SaleOrigin `json:"origin"`
	TotalSale decimal.Decimal  `json:"total_sale"`
	Products  int              `json:"products"`
	Payments  int              `json:"payments"`
}

func auditData(sale model.Sale) auditPayload {
	return auditPayload{
		SaleID:    sale.ID,
		Status:    sale.Status,
		Origin:    sale.Origin,
		TotalSale: sale.Balance.TotalSale,
		Products:  len(sale.Products),
		Payments:  len(sale.Payments),
	}
}
