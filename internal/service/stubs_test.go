package service_test

import (
	"context"
	"errors"
	"sync"

	"gestorpos/internal/batch"
	"gestorpos/internal/model"
	"gestorpos/internal/repository"
	"gestorpos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// Every stub stages ops that mutate its in-memory state; nothing changes until
// the batch commits (with a nil DB, ops receive a nil tx).

type stubSaleRepo struct {
	byID map[uuid.UUID]model.Sale
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{byID: make(map[uuid.UUID]model.Sale)}
}

func (r *stubSaleRepo) FindByID(_ context.Context, owner string, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.byID[id]
	if !ok || s.Owner != owner {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *stubSaleRepo) FindByCode(_ context.Context, owner string, code int64) (*model.Sale, error) {
	for _, s := range r.byID {
		if s.Owner == owner && s.Code == code {
			s := s
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSaleRepo) StageSave(b *batch.Batch, sale model.Sale, refs repository.DocumentRefs) {
	b.Stage(batch.PhaseDocument, "sale", func(_ context.Context, _ *gorm.DB) error {
		if err := refs.Apply(&sale); err != nil {
			return err
		}
		if !refs.IsNew {
			if _, ok := r.byID[sale.ID]; !ok {
				return gorm.ErrRecordNotFound
			}
		}
		r.byID[sale.ID] = sale
		return nil
	})
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

type stubCounterRepo struct {
	values map[string]int64
}

func newStubCounterRepo() *stubCounterRepo {
	return &stubCounterRepo{values: make(map[string]int64)}
}

func (r *stubCounterRepo) Next(_ context.Context, _ *gorm.DB, owner, collection string) (int64, error) {
	key := owner + "/" + collection
	r.values[key]++
	return r.values[key], nil
}

var _ repository.CounterRepository = (*stubCounterRepo)(nil)

type stubStockRepo struct {
	stageErr error
	// commitErr fails the staged op at commit time.
	commitErr error

	quantities map[string]decimal.Decimal
	movements  []model.StockMovement
	operators  map[int64]model.Person
}

func newStubStockRepo() *stubStockRepo {
	return &stubStockRepo{
		quantities: make(map[string]decimal.Decimal),
		operators:  make(map[int64]model.Person),
	}
}

func (r *stubStockRepo) FindProduct(_ context.Context, owner, code string) (*model.Product, error) {
	return &model.Product{Owner: owner, Code: code, Quantity: r.quantities[code]}, nil
}

func (r *stubStockRepo) StageDeltas(_ context.Context, b *batch.Batch, entry repository.StockEntry) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	b.Stage(batch.PhaseLedger, "stock", func(_ context.Context, _ *gorm.DB) error {
		if r.commitErr != nil {
			return r.commitErr
		}
		code, err := entry.Reference.Value()
		if err != nil {
			return err
		}
		for _, d := range entry.Deltas {
			r.quantities[d.ProductCode] = r.quantities[d.ProductCode].Add(d.Quantity)
			r.movements = append(r.movements, model.StockMovement{
				Owner: entry.Owner, ProductCode: d.ProductCode, Action: entry.Action,
				Quantity: d.Quantity, ReferenceCode: code, Operator: entry.Operator,
			})
		}
		return nil
	})
	return nil
}

func (r *stubStockRepo) StageOperatorChange(_ context.Context, b *batch.Batch, _ string, saleCode int64, operator model.Person) error {
	b.Stage(batch.PhaseLedger, "stock_operator", func(_ context.Context, _ *gorm.DB) error {
		r.operators[saleCode] = operator
		return nil
	})
	return nil
}

var _ repository.StockRepository = (*stubStockRepo)(nil)

type stubBankRepo struct {
	mu           sync.Mutex
	defaultCalls int
	findErr      error

	account  *model.BankAccount
	postings []model.BankPosting
	balances map[uuid.UUID]decimal.Decimal
}

func newStubBankRepo() *stubBankRepo {
	return &stubBankRepo{
		account:  &model.BankAccount{ID: uuid.New(), Owner: "store-1", Code: "001", Name: "Caixa", IsDefault: true},
		balances: make(map[uuid.UUID]decimal.Decimal),
	}
}

func (r *stubBankRepo) FindDefaultAccount(_ context.Context, _ string) (*model.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCalls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	if r.account == nil {
		return nil, gorm.ErrRecordNotFound
	}
	a := *r.account
	return &a, nil
}

func (r *stubBankRepo) StagePostings(_ context.Context, b *batch.Batch, postings []repository.PostingDraft, reference *batch.PendingRef[int64]) error {
	b.Stage(batch.PhaseLedger, "bank", func(_ context.Context, _ *gorm.DB) error {
		code, err := reference.Value()
		if err != nil {
			return err
		}
		for _, p := range postings {
			posting := model.BankPosting{
				Owner: p.Owner, BankAccountID: p.Account.ID, Direction: p.Direction, Value: p.Value,
				PaymentCode: p.PaymentCode, ReferenceCode: code, Operation: p.Operation,
			}
			r.postings = append(r.postings, posting)
			r.balances[p.Account.ID] = r.balances[p.Account.ID].Add(posting.Signed())
		}
		return nil
	})
	return nil
}

var _ repository.BankRepository = (*stubBankRepo)(nil)

type stubBillRepo struct {
	stageErr error
	bills    map[int64]model.ReceivableBill
}

func newStubBillRepo() *stubBillRepo {
	return &stubBillRepo{bills: make(map[int64]model.ReceivableBill)}
}

func (r *stubBillRepo) FindByCode(_ context.Context, _ string, code int64) (*model.ReceivableBill, error) {
	bill, ok := r.bills[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &bill, nil
}

func (r *stubBillRepo) StageCreate(_ context.Context, b *batch.Batch, bill model.ReceivableBill, code, reference *batch.PendingRef[int64]) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	b.Stage(batch.PhaseLedger, "receivable_bill", func(_ context.Context, _ *gorm.DB) error {
		var err error
		if bill.Code, err = code.Value(); err != nil {
			return err
		}
		if bill.ReferenceCode, err = reference.Value(); err != nil {
			return err
		}
		r.bills[bill.Code] = bill
		return nil
	})
	return nil
}

func (r *stubBillRepo) StageUpdate(_ context.Context, b *batch.Batch, bill model.ReceivableBill) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	if _, ok := r.bills[bill.Code]; !ok {
		return errors.New("unknown bill")
	}
	b.Stage(batch.PhaseLedger, "receivable_bill", func(_ context.Context, _ *gorm.DB) error {
		current := r.bills[bill.Code]
		current.Installments = bill.Installments
		current.TotalInstallments = bill.TotalInstallments
		current.Amount = bill.Amount
		r.bills[bill.Code] = current
		return nil
	})
	return nil
}

func (r *stubBillRepo) StageCancel(_ context.Context, b *batch.Batch, _ string, code int64) error {
	if r.stageErr != nil {
		return r.stageErr
	}
	b.Stage(batch.PhaseLedger, "receivable_bill_cancel", func(_ context.Context, _ *gorm.DB) error {
		bill := r.bills[code]
		bill.Status = model.BillCanceled
		r.bills[code] = bill
		return nil
	})
	return nil
}

var _ repository.ReceivableBillRepository = (*stubBillRepo)(nil)

type stubWorkOrderRepo struct {
	orders map[int64]model.WorkOrder
}

func (r *stubWorkOrderRepo) FindByCode(_ context.Context, _ string, code int64) (*model.WorkOrder, error) {
	o, ok := r.orders[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *stubWorkOrderRepo) StageStatus(_ context.Context, b *batch.Batch, u repository.WorkOrderUpdate) error {
	if _, ok := r.orders[u.Code]; !ok {
		return errors.New("work order not found")
	}
	b.Stage(batch.PhaseLedger, "work_order", func(_ context.Context, _ *gorm.DB) error {
		o := r.orders[u.Code]
		o.ServiceStatus = u.ServiceStatus
		o.PaymentStatus = u.PaymentStatus
		if u.SaleCode != nil {
			code, err := u.SaleCode.Value()
			if err != nil {
				return err
			}
			o.SaleCode = &code
		}
		r.orders[u.Code] = o
		return nil
	})
	return nil
}

var _ repository.WorkOrderRepository = (*stubWorkOrderRepo)(nil)

type stubRequestRepo struct {
	requests map[int64]model.Request
}

func (r *stubRequestRepo) FindByCode(_ context.Context, _ string, code int64) (*model.Request, error) {
	req, ok := r.requests[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &req, nil
}

func (r *stubRequestRepo) StageSaleMirror(_ context.Context, b *batch.Batch, _ string, code int64, saleCode *batch.PendingRef[int64], status model.SaleStatus) error {
	if _, ok := r.requests[code]; !ok {
		return errors.New("request not found")
	}
	b.Stage(batch.PhaseLedger, "request", func(_ context.Context, _ *gorm.DB) error {
		sc, err := saleCode.Value()
		if err != nil {
			return err
		}
		req := r.requests[code]
		req.SaleCode = &sc
		req.Status = string(status)
		r.requests[code] = req
		return nil
	})
	return nil
}

var _ repository.RequestRepository = (*stubRequestRepo)(nil)

type stubAuditRepo struct {
	entries []model.AuditAction
}

func (r *stubAuditRepo) StageEntry(_ context.Context, b *batch.Batch, entry repository.AuditEntry) error {
	b.Stage(batch.PhaseLedger, "audit_log", func(_ context.Context, _ *gorm.DB) error {
		if _, err := entry.Reference.Value(); err != nil {
			return err
		}
		r.entries = append(r.entries, entry.Action)
		return nil
	})
	return nil
}

var _ repository.AuditLogRepository = (*stubAuditRepo)(nil)

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	sales      *stubSaleRepo
	counters   *stubCounterRepo
	stock      *stubStockRepo
	bank       *stubBankRepo
	bills      *stubBillRepo
	workOrders *stubWorkOrderRepo
	requests   *stubRequestRepo
	audit      *stubAuditRepo

	ledgers    service.Ledgers
	settlement service.SettlementService
	svc        service.SaleService
}

func newFixture() *fixture {
	f := &fixture{
		sales:      newStubSaleRepo(),
		counters:   newStubCounterRepo(),
		stock:      newStubStockRepo(),
		bank:       newStubBankRepo(),
		bills:      newStubBillRepo(),
		workOrders: &stubWorkOrderRepo{orders: make(map[int64]model.WorkOrder)},
		requests:   &stubRequestRepo{requests: make(map[int64]model.Request)},
		audit:      &stubAuditRepo{},
	}
	ledgers := service.Ledgers{
		Sales:      f.sales,
		Counters:   f.counters,
		Stock:      f.stock,
		Bank:       f.bank,
		Bills:      f.bills,
		WorkOrders: f.workOrders,
		Requests:   f.requests,
		Audit:      f.audit,
	}
	f.ledgers = ledgers
	f.settlement = service.NewSettlementService(ledgers)
	f.svc = service.NewSaleService(ledgers, f.settlement, service.SaleOptions{CreditPaymentCode: "CREDIT"}, nil, nil)
	return f
}
