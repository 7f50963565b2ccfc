package service_test

import (
	"context"
	"testing"

	"gestorpos/internal/model"
	"gestorpos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSaleRef(t *testing.T) {
	id := uuid.New()

	ref, err := service.ParseSaleRef(id.String())
	require.NoError(t, err)
	assert.Equal(t, service.SaleRef{ID: id}, ref)

	ref, err = service.ParseSaleRef("42")
	require.NoError(t, err)
	assert.Equal(t, service.SaleRef{Code: 42}, ref)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := service.ParseSaleRef(bad)
		assert.True(t, service.IsValidation(err), "ref %q", bad)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture()
	cart := cashCart("2", "1")

	preview := f.svc.Preview(cart)

	assertDec(t, "200", preview.Balance.TotalSale)
	require.Len(t, preview.Payments, 1)
	assertDec(t, "200", preview.Payments[0].Value)
	assert.Equal(t, service.PaymentAccepted, preview.Status.Status)
	assertDec(t, "0", preview.Status.Pendent)
}

func TestRegister_RejectsKnownSale(t *testing.T) {
	f := newFixture()
	cart := cashCart("1", "100")
	cart.Code = 5

	_, err := f.svc.Register(context.Background(), cart)

	assert.True(t, service.IsValidation(err))
}

func TestRegister_RequiresOperator(t *testing.T) {
	f := newFixture()
	cart := cashCart("1", "100")
	cart.Operator = model.Person{}

	_, err := f.svc.Register(context.Background(), cart)

	assert.True(t, service.IsValidation(err))
}

func TestChangeOperator(t *testing.T) {
	f := newFixture()
	cart := cashCart("2", "50")
	cart.Payments = append(cart.Payments, model.PaymentAllocation{Code: "CREDIT", Value: dec("150")})
	res := register(t, f, cart)
	postings := len(f.bank.postings)
	bia := model.Person{ID: "u2", Name: "Bia"}

	_, err := f.svc.ChangeOperator(context.Background(), "store-1", service.SaleRef{Code: res.Code}, bia)
	require.NoError(t, err)

	stored := f.sales.byID[res.SaleID]
	assert.Equal(t, bia, stored.Operator)
	assert.Equal(t, bia, f.stock.operators[res.Code])
	assertDec(t, "-2", f.stock.quantities["P1"], "inventory is not touched")
	assert.Len(t, f.bank.postings, postings, "unchanged payments post nothing")
	assert.Equal(t, model.BillPendent, f.bills.bills[1].Status, "the bill is kept")
	require.NotNil(t, stored.BillToReceiveCode)
	assert.Contains(t, f.audit.entries, model.AuditChangeOperator)
}

func TestChangeOperator_RequiresOperator(t *testing.T) {
	f := newFixture()
	res := register(t, f, cashCart("1", "100"))

	_, err := f.svc.ChangeOperator(context.Background(), "store-1", service.SaleRef{Code: res.Code}, model.Person{})

	assert.True(t, service.IsValidation(err))
}

type stubCache struct {
	byID    map[uuid.UUID]*model.Sale
	version int64
	sets    int
	evicted []int64
}

func newStubCache() *stubCache {
	return &stubCache{byID: make(map[uuid.UUID]*model.Sale)}
}

func (c *stubCache) GetByID(_ context.Context, _ string, id uuid.UUID) (*model.Sale, bool) {
	s, ok := c.byID[id]
	return s, ok
}

func (c *stubCache) GetByCode(_ context.Context, _ string, code int64) (*model.Sale, bool) {
	for _, s := range c.byID {
		if s.Code == code {
			return s, true
		}
	}
	return nil, false
}

func (c *stubCache) Version(_ context.Context, _ string) int64 { return c.version }

func (c *stubCache) Set(_ context.Context, sale *model.Sale, version int64) {
	if version != c.version {
		return
	}
	c.sets++
	c.byID[sale.ID] = sale
}

func (c *stubCache) Evict(_ context.Context, _ string, id uuid.UUID, code int64) error {
	delete(c.byID, id)
	c.version++
	c.evicted = append(c.evicted, code)
	return nil
}

// slowSales runs during while a lookup is in flight, standing in for a
// commit that lands between the cache miss and the cache write.
type slowSales struct {
	*stubSaleRepo
	during func()
}

func (r *slowSales) FindByCode(ctx context.Context, owner string, code int64) (*model.Sale, error) {
	sale, err := r.stubSaleRepo.FindByCode(ctx, owner, code)
	r.during()
	return sale, err
}

func TestGet_ReadsThroughCache(t *testing.T) {
	f := newFixture()
	res := register(t, f, cashCart("1", "100"))
	cache := newStubCache()
	svc := service.NewSaleService(service.Ledgers{Sales: f.sales}, f.settlement, service.SaleOptions{}, nil, cache)

	first, err := svc.Get(context.Background(), "store-1", service.SaleRef{Code: res.Code})
	require.NoError(t, err)
	assert.Equal(t, res.SaleID, first.ID)
	assert.Equal(t, 1, cache.sets)

	delete(f.sales.byID, res.SaleID)
	second, err := svc.Get(context.Background(), "store-1", service.SaleRef{ID: res.SaleID})
	require.NoError(t, err)
	assert.Equal(t, res.SaleID, second.ID)
	assert.Equal(t, 1, cache.sets)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(context.Background(), "store-1", service.SaleRef{ID: uuid.New()})

	assert.ErrorIs(t, err, service.ErrSaleNotFound)
}

func TestGet_SkipsCacheWriteAfterConcurrentEvict(t *testing.T) {
	f := newFixture()
	res := register(t, f, cashCart("1", "100"))
	cache := newStubCache()
	sales := &slowSales{stubSaleRepo: f.sales}
	svc := service.NewSaleService(service.Ledgers{Sales: sales}, f.settlement, service.SaleOptions{}, nil, cache)
	sales.during = func() {
		require.NoError(t, cache.Evict(context.Background(), "store-1", res.SaleID, res.Code))
	}

	sale, err := svc.Get(context.Background(), "store-1", service.SaleRef{Code: res.Code})
	require.NoError(t, err)

	assert.Equal(t, res.SaleID, sale.ID)
	assert.Equal(t, 0, cache.sets, "the lookup predates the eviction")
	assert.Empty(t, cache.byID)
}

func TestCancel_EvictsCacheBeforeReturning(t *testing.T) {
	f := newFixture()
	cache := newStubCache()
	svc := service.NewSaleService(f.ledgers, f.settlement, service.SaleOptions{}, nil, cache)
	res, err := svc.Register(context.Background(), cashCart("1", "100"))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "store-1", service.SaleRef{Code: res.Code})
	require.NoError(t, err)
	require.Len(t, cache.byID, 1)

	_, err = svc.Cancel(context.Background(), "store-1", service.SaleRef{Code: res.Code})
	require.NoError(t, err)

	assert.Empty(t, cache.byID)
	assert.Equal(t, []int64{res.Code, res.Code}, cache.evicted)
	got, err := svc.Get(context.Background(), "store-1", service.SaleRef{Code: res.Code})
	require.NoError(t, err)
	assert.Equal(t, model.SaleCanceled, got.Status)
}
