// Package memory is an in-process implementation of the repository
// contracts. It backs the test suite and the STORE_DRIVER=memory dev mode.
// Transactions are modeled as a full-state snapshot restored on error, which
// preserves the all-or-nothing guarantee the orchestrators rely on.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
)

// Pool hands out one in-memory store per pharmacy.
type Pool struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewPool creates an empty tenant pool.
func NewPool() *Pool {
	return &Pool{stores: make(map[string]*Store)}
}

// Tenant returns the store for the given pharmacy, creating it on first use.
func (p *Pool) Tenant(pharmacyID string) repository.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.stores[pharmacyID]
	if !ok {
		st = NewStore()
		p.stores[pharmacyID] = st
	}
	return st
}

type state struct {
	products map[string]models.Product
	winnings map[string]models.Winning
	debtors  map[string]models.Debtor
	orders   map[string]models.Order
	settings map[string]string
	reports  []models.DailyReport
}

func newState() *state {
	return &state{
		products: make(map[string]models.Product),
		winnings: make(map[string]models.Winning),
		debtors:  make(map[string]models.Debtor),
		orders:   make(map[string]models.Order),
		settings: make(map[string]string),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range st.winnings {
		c.winnings[k] = v
	}
	for k, v := range st.debtors {
		c.debtors[k] = v
	}
	for k, v := range st.orders {
		o := v
		o.Items = append([]models.OrderItem(nil), v.Items...)
		c.orders[k] = o
	}
	for k, v := range st.settings {
		c.settings[k] = v
	}
	c.reports = append([]models.DailyReport(nil), st.reports...)
	return c
}

func cloneProduct(p models.Product) models.Product {
	out := p
	out.Barcodes = append([]string(nil), p.Barcodes...)
	if p.ConversionFactor != nil {
		f := *p.ConversionFactor
		out.ConversionFactor = &f
	}
	if p.ExpiryDate != nil {
		d := *p.ExpiryDate
		out.ExpiryDate = &d
	}
	return out
}

// Store holds one pharmacy's state behind a single mutex.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{st: newState()}
}

type txnKey struct{}

// lock acquires the store mutex unless the context already runs inside a
// transaction, which holds it for the whole invocation.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txnKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunTransaction snapshots the whole state, runs fn under the store lock and
// restores the snapshot when fn fails.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txnKey{}, true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Products() repository.ProductStore { return &productStore{s} }
func (s *Store) Winnings() repository.WinningStore { return &winningStore{s} }
func (s *Store) Debtors() repository.DebtorStore   { return &debtorStore{s} }
func (s *Store) Orders() repository.OrderStore     { return &orderStore{s} }
func (s *Store) Settings() repository.SettingStore { return &settingStore{s} }
func (s *Store) Reports() repository.ReportStore   { return &reportStore{s} }

type productStore struct{ s *Store }

func (ps *productStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	defer ps.s.lock(ctx)()
	p, ok := ps.s.st.products[id.Hex()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneProduct(p)
	return &out, nil
}

func (ps *productStore) FindByNameTypePrice(ctx context.Context, name, productType string, price float64) (*models.Product, error) {
	defer ps.s.lock(ctx)()
	name = strings.TrimSpace(name)
	for _, p := range ps.s.st.products {
		if p.Name == name && p.Type == productType && p.Price == price {
			out := cloneProduct(p)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (ps *productStore) FindByName(ctx context.Context, name string) (*models.Product, error) {
	defer ps.s.lock(ctx)()
	name = strings.TrimSpace(name)
	for _, p := range ps.s.st.products {
		if p.Name == name {
			out := cloneProduct(p)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (ps *productStore) Insert(ctx context.Context, p *models.Product) error {
	defer ps.s.lock(ctx)()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	ps.s.st.products[p.ID.Hex()] = cloneProduct(*p)
	return nil
}

func (ps *productStore) Update(ctx context.Context, p models.Product) error {
	defer ps.s.lock(ctx)()
	if _, ok := ps.s.st.products[p.ID.Hex()]; !ok {
		return repository.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	ps.s.st.products[p.ID.Hex()] = cloneProduct(p)
	return nil
}

func (ps *productStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer ps.s.lock(ctx)()
	if _, ok := ps.s.st.products[id.Hex()]; !ok {
		return repository.ErrNotFound
	}
	delete(ps.s.st.products, id.Hex())
	return nil
}

func (ps *productStore) ListShortcomings(ctx context.Context) ([]models.Product, error) {
	return ps.filter(ctx, func(p models.Product) bool { return p.IsShortcoming })
}

func (ps *productStore) ListExpiring(ctx context.Context, before time.Time) ([]models.Product, error) {
	return ps.filter(ctx, func(p models.Product) bool {
		return p.ExpiryDate != nil && !p.ExpiryDate.After(before)
	})
}

func (ps *productStore) ListByCompany(ctx context.Context, company string) ([]models.Product, error) {
	return ps.filter(ctx, func(p models.Product) bool { return p.Company == company })
}

func (ps *productStore) filter(ctx context.Context, keep func(models.Product) bool) ([]models.Product, error) {
	defer ps.s.lock(ctx)()
	var out []models.Product
	for _, p := range ps.s.st.products {
		if keep(p) {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type winningStore struct{ s *Store }

func (ws *winningStore) Insert(ctx context.Context, w *models.Winning) error {
	defer ws.s.lock(ctx)()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	if w.Date.IsZero() {
		w.Date = time.Now()
	}
	ws.s.st.winnings[w.ID.Hex()] = *w
	return nil
}

func (ws *winningStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer ws.s.lock(ctx)()
	if _, ok := ws.s.st.winnings[id.Hex()]; !ok {
		return repository.ErrNotFound
	}
	delete(ws.s.st.winnings, id.Hex())
	return nil
}

func (ws *winningStore) ListByRange(ctx context.Context, from, to time.Time, types []models.TransactionType) ([]models.Winning, error) {
	return ws.filter(ctx, func(w models.Winning) bool {
		if w.Date.Before(from) || w.Date.After(to) {
			return false
		}
		if len(types) == 0 {
			return true
		}
		for _, t := range types {
			if w.TransactionType == t {
				return true
			}
		}
		return false
	})
}

func (ws *winningStore) ListSuspendedByReason(ctx context.Context, name string) ([]models.Winning, error) {
	needle := strings.ToLower(name)
	return ws.filter(ctx, func(w models.Winning) bool {
		return w.TransactionType == models.TransactionSuspended &&
			strings.Contains(strings.ToLower(w.Reason), needle)
	})
}

func (ws *winningStore) ListByType(ctx context.Context, t models.TransactionType) ([]models.Winning, error) {
	return ws.filter(ctx, func(w models.Winning) bool { return w.TransactionType == t })
}

func (ws *winningStore) filter(ctx context.Context, keep func(models.Winning) bool) ([]models.Winning, error) {
	defer ws.s.lock(ctx)()
	var out []models.Winning
	for _, w := range ws.s.st.winnings {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type debtorStore struct{ s *Store }

func (ds *debtorStore) FindByName(ctx context.Context, name string) (*models.Debtor, error) {
	defer ds.s.lock(ctx)()
	name = strings.TrimSpace(name)
	for _, d := range ds.s.st.debtors {
		if d.Name == name {
			out := d
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (ds *debtorStore) Insert(ctx context.Context, d *models.Debtor) error {
	defer ds.s.lock(ctx)()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	d.CreatedAt = time.Now()
	ds.s.st.debtors[d.ID.Hex()] = *d
	return nil
}

func (ds *debtorStore) SetPartialPayments(ctx context.Context, id primitive.ObjectID, amount float64) error {
	defer ds.s.lock(ctx)()
	d, ok := ds.s.st.debtors[id.Hex()]
	if !ok {
		return repository.ErrNotFound
	}
	d.PartialPayments = amount
	ds.s.st.debtors[id.Hex()] = d
	return nil
}

func (ds *debtorStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer ds.s.lock(ctx)()
	if _, ok := ds.s.st.debtors[id.Hex()]; !ok {
		return repository.ErrNotFound
	}
	delete(ds.s.st.debtors, id.Hex())
	return nil
}

type orderStore struct{ s *Store }

func (os *orderStore) Insert(ctx context.Context, o *models.Order) error {
	defer os.s.lock(ctx)()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.OrderedAt.IsZero() {
		o.OrderedAt = time.Now()
	}
	stored := *o
	stored.Items = append([]models.OrderItem(nil), o.Items...)
	os.s.st.orders[o.ID.Hex()] = stored
	return nil
}

func (os *orderStore) ListByDebtor(ctx context.Context, debtorID primitive.ObjectID) ([]models.Order, error) {
	defer os.s.lock(ctx)()
	var out []models.Order
	for _, o := range os.s.st.orders {
		if o.DebtorID == debtorID {
			c := o
			c.Items = append([]models.OrderItem(nil), o.Items...)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderedAt.Before(out[j].OrderedAt) })
	return out, nil
}

func (os *orderStore) DeleteByDebtor(ctx context.Context, debtorID primitive.ObjectID) error {
	defer os.s.lock(ctx)()
	for k, o := range os.s.st.orders {
		if o.DebtorID == debtorID {
			delete(os.s.st.orders, k)
		}
	}
	return nil
}

type settingStore struct{ s *Store }

func (ss *settingStore) Get(ctx context.Context, key, fallback string) (string, error) {
	defer ss.s.lock(ctx)()
	if v, ok := ss.s.st.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (ss *settingStore) Set(ctx context.Context, key, value string) error {
	defer ss.s.lock(ctx)()
	ss.s.st.settings[key] = value
	return nil
}

type reportStore struct{ s *Store }

func (rs *reportStore) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	defer rs.s.lock(ctx)()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	rs.s.st.reports = append(rs.s.st.reports, report)
	return nil
}
