//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/domain/ports/repository"
	"signal-billing/internal/usecase"
)

// =============================
// In-memory repositories
// =============================

// memWalletRepo keys wallets by (owner, currency) the way the unique index
// does in Postgres. Save keeps the first row on conflict.
type memWalletRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Wallet // key: ownerID|currency
	saveErr error
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{store: make(map[string]*model.Wallet)}
}

func walletKey(ownerID, currency string) string { return ownerID + "|" + currency }

func (m *memWalletRepo) Save(ctx context.Context, tx repository.Tx, w *model.Wallet) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := walletKey(w.OwnerID, w.Currency)
	if _, exists := m.store[key]; exists {
		return nil // ON CONFLICT DO NOTHING
	}
	cp := *w
	m.store[key] = &cp
	return nil
}

func (m *memWalletRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.store {
		if w.ID == id {
			cp := *w
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memWalletRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID, currency string) (*model.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.store[walletKey(ownerID, currency)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWalletRepo) UpdateBalance(ctx context.Context, tx repository.Tx, id string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.store {
		if w.ID == id {
			w.Balance = balance
			w.UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrNotFound
}

// memLedgerRepo is append-only, like the real table.
type memLedgerRepo struct {
	mu      sync.RWMutex
	entries []*model.LedgerEntry
}

func newMemLedgerRepo() *memLedgerRepo { return &memLedgerRepo{} }

func (m *memLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.entries {
		if have.ID == e.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLedgerRepo) ListByWallet(ctx context.Context, tx repository.Tx, walletID string, limit int) ([]*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].WalletID == walletID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memLedgerRepo) SumSigned(ctx context.Context, tx repository.Tx, walletID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, e := range m.entries {
		if e.WalletID == walletID {
			sum += e.Signed()
		}
	}
	return sum, nil
}

// memIntentRepo enforces the unique order code the way the real index does.
type memIntentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentIntent
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{store: make(map[string]*model.PaymentIntent)}
}

func (m *memIntentRepo) Save(ctx context.Context, tx repository.Tx, i *model.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.store {
		if have.OrderCode == i.OrderCode && have.ID != i.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *i
	m.store[i.ID] = &cp
	return nil
}

func (m *memIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *memIntentRepo) FindByOrderCode(ctx context.Context, tx repository.Tx, orderCode string) (*model.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.store {
		if i.OrderCode == orderCode {
			cp := *i
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memIntentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus, referenceCode *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	i.Status = status
	if referenceCode != nil {
		rc := *referenceCode
		i.ReferenceCode = &rc
	}
	i.UpdatedAt = time.Now()
	return nil
}

func (m *memIntentRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit, offset int) ([]*model.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.PaymentIntent
	for _, i := range m.store {
		if i.OwnerID == ownerID {
			cp := *i
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

type memAttemptRepo struct {
	mu       sync.RWMutex
	attempts []*model.PaymentAttempt
}

func newMemAttemptRepo() *memAttemptRepo { return &memAttemptRepo{} }

func (m *memAttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *memAttemptRepo) LatestByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].IntentID == intentID {
			cp := *m.attempts[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAttemptRepo) ListByIntent(ctx context.Context, tx repository.Tx, intentID string) ([]*model.PaymentAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentAttempt
	for _, a := range m.attempts {
		if a.IntentID == intentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memPaymentRepo enforces one settlement per intent.
type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment // key: payment ID
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.store {
		if have.IntentID == p.IntentID {
			return domain.ErrDuplicateSettlement
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.IntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// memBankTxRepo is the reconciliation inbox; first insert per provider id wins.
type memBankTxRepo struct {
	mu    sync.RWMutex
	store map[int64]*model.BankTransaction
}

func newMemBankTxRepo() *memBankTxRepo {
	return &memBankTxRepo{store: make(map[int64]*model.BankTransaction)}
}

func (m *memBankTxRepo) Insert(ctx context.Context, tx repository.Tx, b *model.BankTransaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[b.ProviderTxID]; exists {
		return false, nil
	}
	cp := *b
	m.store[b.ProviderTxID] = &cp
	return true, nil
}

func (m *memBankTxRepo) FindByProviderTxID(ctx context.Context, tx repository.Tx, providerTxID int64) (*model.BankTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[providerTxID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBankTxRepo) RecordOutcome(ctx context.Context, tx repository.Tx, providerTxID int64, outcome model.ReconcileOutcome, intentID, paymentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[providerTxID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Outcome = outcome
	b.MatchedIntentID = intentID
	b.MatchedPaymentID = paymentID
	return nil
}

type memOrderRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{store: make(map[string]*model.Order)}
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp
}

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[o.ID] = cloneOrder(o)
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrderRepo) FindByIntent(ctx context.Context, tx repository.Tx, intentID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.store {
		if o.IntentID != nil && *o.IntentID == intentID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrderRepo) LinkIntent(ctx context.Context, tx repository.Tx, id string, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.IntentID = &intentID
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrderRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, statuses []model.OrderStatus, limit, offset int) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.OwnerID != ownerID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if o.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

type memLicenseRepo struct {
	mu    sync.RWMutex
	store map[string]*model.License
}

func newMemLicenseRepo() *memLicenseRepo {
	return &memLicenseRepo{store: make(map[string]*model.License)}
}

func (m *memLicenseRepo) Save(ctx context.Context, tx repository.Tx, l *model.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.store[l.ID] = &cp
	return nil
}

// FindActiveByOwnerAndSubject mirrors the repository ordering: lifetime rows
// first, then the latest end date.
func (m *memLicenseRepo) FindActiveByOwnerAndSubject(ctx context.Context, tx repository.Tx, ownerID string, subjectID int64) (*model.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var best *model.License
	for _, l := range m.store {
		if l.OwnerID != ownerID || l.SubjectID != subjectID || !l.IsActive(now) {
			continue
		}
		if best == nil || (l.EndAt == nil && best.EndAt != nil) ||
			(l.EndAt != nil && best.EndAt != nil && l.EndAt.After(*best.EndAt)) {
			best = l
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memLicenseRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit, offset int) ([]*model.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.License
	for _, l := range m.store {
		if l.OwnerID == ownerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memLicenseRepo) DetachSubscription(ctx context.Context, tx repository.Tx, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.store {
		if l.SubscriptionID != nil && *l.SubscriptionID == subscriptionID {
			l.SubscriptionID = nil
			l.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *memLicenseRepo) ExpireDue(ctx context.Context, tx repository.Tx, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, l := range m.store {
		if n >= limit {
			break
		}
		if l.Status == model.LicenseStatusActive && l.EndAt != nil && l.EndAt.Before(now) {
			l.Status = model.LicenseStatusExpired
			l.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

type memSubjectRepo struct {
	mu  sync.RWMutex
	ids map[int64]bool
}

func newMemSubjectRepo(ids ...int64) *memSubjectRepo {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return &memSubjectRepo{ids: set}
}

func (m *memSubjectRepo) FilterExisting(ctx context.Context, tx repository.Tx, ids []int64) (map[int64]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if m.ids[id] {
			out[id] = true
		}
	}
	return out, nil
}

// memSubscriptionRepo enforces the one-live-subscription partial index.
type memSubscriptionRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.AutoRenewSubscription
	attempts []*model.AutoRenewAttempt
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.AutoRenewSubscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.AutoRenewSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.IsLive() {
		for _, have := range m.store {
			if have.ID != s.ID && have.OwnerID == s.OwnerID && have.SubjectID == s.SubjectID && have.IsLive() {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AutoRenewSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindLiveByOwnerAndSubject(ctx context.Context, tx repository.Tx, ownerID string, subjectID int64) (*model.AutoRenewSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.OwnerID == ownerID && s.SubjectID == subjectID && s.IsLive() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.AutoRenewSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.AutoRenewSubscription
	for _, s := range m.store {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memSubscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type due struct {
		id string
		at time.Time
	}
	var dues []due
	for _, s := range m.store {
		if s.Status == model.AutoRenewStatusActive && s.NextBillingAt != nil && !s.NextBillingAt.After(now) {
			dues = append(dues, due{s.ID, *s.NextBillingAt})
		}
	}
	sort.Slice(dues, func(a, b int) bool { return dues[a].at.Before(dues[b].at) })
	if limit < len(dues) {
		dues = dues[:limit]
	}
	out := make([]string, 0, len(dues))
	for _, d := range dues {
		out = append(out, d.id)
	}
	return out, nil
}

func (m *memSubscriptionRepo) InsertAttempt(ctx context.Context, tx repository.Tx, a *model.AutoRenewAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *memSubscriptionRepo) ListAttempts(ctx context.Context, tx repository.Tx, subscriptionID string, limit int) ([]*model.AutoRenewAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.AutoRenewAttempt
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if m.attempts[i].SubscriptionID == subscriptionID {
			cp := *m.attempts[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// =============================
// Infra mocks
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX by default. Rollback
// semantics are not simulated; tests that care assert on repository state.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

type MockGateway struct {
	CreateQRFunc func(ctx context.Context, amount int64, content, bankCode string) (*adapter.QRAsset, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateQR(ctx context.Context, amount int64, content, bankCode string) (*adapter.QRAsset, error) {
	if m.CreateQRFunc != nil {
		return m.CreateQRFunc(ctx, amount, content, bankCode)
	}
	return &adapter.QRAsset{
		AccountNumber: "0123499999",
		AccountName:   "SIGNAL BILLING",
		BankCode:      bankCode,
		QRImageURL:    "https://qr.example/img?des=" + content,
	}, nil
}

type MockNotifier struct {
	mu     sync.Mutex
	Events []adapter.Event
	Err    error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, ev adapter.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockNotifier) Count(t adapter.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.Events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Wired fixture
// =============================

// fixture wires the full use-case graph over in-memory repositories, the way
// cmd/app does over Postgres.
type fixture struct {
	wallets  *memWalletRepo
	ledger   *memLedgerRepo
	intents  *memIntentRepo
	attempts *memAttemptRepo
	payments *memPaymentRepo
	bankTxs  *memBankTxRepo
	orders   *memOrderRepo
	licenses *memLicenseRepo
	subjects *memSubjectRepo
	subs     *memSubscriptionRepo

	notifier *MockNotifier
	tm       *MockTxManager

	walletUC    usecase.WalletUseCase
	intentUC    usecase.IntentUseCase
	orderUC     usecase.OrderUseCase
	renewUC     usecase.AutoRenewUseCase
	reconcileUC usecase.ReconcileUseCase
}

func newFixture(subjectIDs ...int64) *fixture {
	f := &fixture{
		wallets:  newMemWalletRepo(),
		ledger:   newMemLedgerRepo(),
		intents:  newMemIntentRepo(),
		attempts: newMemAttemptRepo(),
		payments: newMemPaymentRepo(),
		bankTxs:  newMemBankTxRepo(),
		orders:   newMemOrderRepo(),
		licenses: newMemLicenseRepo(),
		subjects: newMemSubjectRepo(subjectIDs...),
		subs:     newMemSubscriptionRepo(),
		notifier: &MockNotifier{},
		tm:       NewMockTxManager(),
	}
	logger := newTestLogger()
	f.walletUC = usecase.NewWalletUseCase(f.wallets, f.ledger, f.tm, logger)
	f.intentUC = usecase.NewIntentUseCase(f.intents, f.attempts, f.walletUC, &MockGateway{}, f.tm, time.Hour, logger)
	orderUC := usecase.NewOrderUseCase(f.orders, f.licenses, f.subjects, f.walletUC, f.intentUC, f.notifier, f.tm, logger)
	renewUC := usecase.NewAutoRenewUseCase(f.subs, f.licenses, f.walletUC, orderUC, f.notifier, f.tm, logger)
	orderUC.BindEnroller(renewUC)
	f.orderUC = orderUC
	f.renewUC = renewUC
	f.reconcileUC = usecase.NewReconcileUseCase(f.bankTxs, f.intents, f.payments, f.walletUC, f.orderUC, f.notifier, f.tm, logger)
	return f
}

// fund credits the owner's wallet through the only legal write path.
func (f *fixture) fund(ctx context.Context, ownerID string, amount int64) error {
	if _, err := f.walletUC.GetOrCreate(ctx, ownerID, ""); err != nil {
		return err
	}
	_, err := f.walletUC.Credit(ctx, repository.NoTX, usecase.LedgerRequest{
		OwnerID: ownerID,
		Amount:  amount,
		TxType:  model.LedgerTxDeposit,
		Note:    "test funding",
	})
	return err
}

// intDays is a helper for OrderItemInput.LicenseDays literals.
func intDays(n int) *int { return &n }

// assertBalanced is shared by several tests: the cached balance must equal
// the signed ledger sum.
func balanceMatchesLedger(ctx context.Context, f *fixture, ownerID string) (int64, int64, bool) {
	w, err := f.walletUC.Get(ctx, ownerID, "")
	if err != nil {
		return 0, 0, false
	}
	sum, err := f.ledger.SumSigned(ctx, repository.NoTX, w.ID)
	if err != nil {
		return 0, 0, false
	}
	return w.Balance, sum, w.Balance == sum
}

// webhookFor builds an inbound transfer event that matches the intent's memo
// the way a bank renders it: surrounded by free text.
func webhookFor(intent *model.PaymentIntent, providerTxID int64, amount int64) usecase.BankWebhookEvent {
	return usecase.BankWebhookEvent{
		ProviderTxID:    providerTxID,
		Gateway:         "Vietcombank",
		TransactionDate: time.Now(),
		AccountNumber:   "0123499999",
		TransferType:    "in",
		TransferAmount:  amount,
		Content:         "CHUYEN TIEN " + strings.ToUpper(intent.OrderCode) + " QUA MB",
		ReferenceNumber: "REF123",
	}
}
