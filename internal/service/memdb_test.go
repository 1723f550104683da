package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
	"github.com/fairyhunter13/loyalty-ledger/internal/tier"
	"github.com/fairyhunter13/loyalty-ledger/pkg/database"
)

// memState is one consistent snapshot of every table.
type memState struct {
	accounts map[uuid.UUID]model.Account
	rewards  map[uuid.UUID]model.Reward
	requests []model.RedeemRequest
	vouchers []model.Voucher
	entries  []model.TransactionEntry
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[uuid.UUID]model.Account),
		rewards:  make(map[uuid.UUID]model.Reward),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.rewards {
		c.rewards[k] = v
	}
	c.requests = append([]model.RedeemRequest(nil), s.requests...)
	c.vouchers = append([]model.Voucher(nil), s.vouchers...)
	c.entries = append([]model.TransactionEntry(nil), s.entries...)
	return c
}

// memDB is an in-memory TxBeginner. Units of work run one at a time, which stands in
// for the row locks Postgres takes; writes become visible only on Commit.
type memDB struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	state  *memState

	beginErr  error
	commitErr error
	// fail, when set, is consulted before every write; a non-nil result aborts it.
	fail func(op string) error

	commits   int
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}
	db.txMu.Lock()
	db.dataMu.RLock()
	snapshot := db.state.clone()
	db.dataMu.RUnlock()
	return &memTx{db: db, state: snapshot}, nil
}

func (db *memDB) repos() Repositories {
	return Repositories{
		Accounts:     &memAccounts{db: db},
		Rewards:      &memRewards{db: db},
		Requests:     &memRequests{db: db},
		Vouchers:     &memVouchers{db: db},
		Transactions: &memTransactions{db: db},
	}
}

func (db *memDB) check(op string) error {
	if db.fail != nil {
		return db.fail(op)
	}
	return nil
}

// read runs fn against committed state.
func (db *memDB) read(fn func(s *memState)) {
	db.dataMu.RLock()
	defer db.dataMu.RUnlock()
	fn(db.state)
}

// write applies fn directly to committed state as its own unit of work.
func (db *memDB) write(fn func(s *memState) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	db.dataMu.Lock()
	defer db.dataMu.Unlock()
	return fn(db.state)
}

func (db *memDB) account(id uuid.UUID) model.Account {
	var a model.Account
	db.read(func(s *memState) { a = s.accounts[id] })
	return a
}

func (db *memDB) entries(accountID uuid.UUID) []model.TransactionEntry {
	var out []model.TransactionEntry
	db.read(func(s *memState) {
		for _, e := range s.entries {
			if e.AccountID == accountID {
				out = append(out, e)
			}
		}
	})
	return out
}

func (db *memDB) vouchers(accountID uuid.UUID) []model.Voucher {
	var out []model.Voucher
	db.read(func(s *memState) {
		for _, v := range s.vouchers {
			if v.AccountID == accountID {
				out = append(out, v)
			}
		}
	})
	return out
}

func (db *memDB) seedAccount(a model.Account) {
	_ = db.write(func(s *memState) error {
		s.accounts[a.ID] = a
		return nil
	})
}

func (db *memDB) seedReward(r model.Reward) {
	_ = db.write(func(s *memState) error {
		s.rewards[r.ID] = r
		return nil
	})
}

// memTx implements pgx.Tx over a private snapshot.
type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.db.txMu.Unlock()
	if t.db.commitErr != nil {
		t.db.rollbacks++
		return t.db.commitErr
	}
	t.db.dataMu.Lock()
	t.db.state = t.state
	t.db.dataMu.Unlock()
	t.db.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.rollbacks++
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (t *memTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (t *memTx) Conn() *pgx.Conn {
	return nil
}

func txState(q database.TxQuerier) *memState {
	return q.(*memTx).state
}

type memAccounts struct{ db *memDB }

func (r *memAccounts) Insert(ctx context.Context, account *model.Account) error {
	if err := r.db.check("accounts.Insert"); err != nil {
		return err
	}
	return r.db.write(func(s *memState) error {
		if _, ok := s.accounts[account.ID]; ok {
			return ErrAccountExists
		}
		s.accounts[account.ID] = *account
		return nil
	})
}

func (r *memAccounts) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var (
		a  model.Account
		ok bool
	)
	r.db.read(func(s *memState) { a, ok = s.accounts[id] })
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAccounts) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Account, error) {
	a, ok := txState(tx).accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *memAccounts) UpdateBalance(ctx context.Context, tx database.TxQuerier, account *model.Account) error {
	if err := r.db.check("accounts.UpdateBalance"); err != nil {
		return err
	}
	s := txState(tx)
	if _, ok := s.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	s.accounts[account.ID] = *account
	return nil
}

type memRewards struct{ db *memDB }

func (r *memRewards) Insert(ctx context.Context, reward *model.Reward) error {
	if err := r.db.check("rewards.Insert"); err != nil {
		return err
	}
	return r.db.write(func(s *memState) error {
		s.rewards[reward.ID] = *reward
		return nil
	})
}

func (r *memRewards) GetByID(ctx context.Context, id uuid.UUID) (*model.Reward, error) {
	var (
		rw model.Reward
		ok bool
	)
	r.db.read(func(s *memState) { rw, ok = s.rewards[id] })
	if !ok {
		return nil, nil
	}
	return &rw, nil
}

func (r *memRewards) GetSnapshot(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Reward, error) {
	rw, ok := txState(tx).rewards[id]
	if !ok {
		return nil, ErrRewardNotFound
	}
	return &rw, nil
}

func (r *memRewards) ListActive(ctx context.Context) ([]model.Reward, error) {
	var out []model.Reward
	r.db.read(func(s *memState) {
		for _, rw := range s.rewards {
			if rw.IsActive {
				out = append(out, rw)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PointsCost < out[j].PointsCost })
	return out, nil
}

func (r *memRewards) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.write(func(s *memState) error {
		rw, ok := s.rewards[id]
		if !ok {
			return ErrRewardNotFound
		}
		rw.IsActive = false
		s.rewards[id] = rw
		return nil
	})
}

type memRequests struct{ db *memDB }

func (r *memRequests) Insert(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error {
	if err := r.db.check("requests.Insert"); err != nil {
		return err
	}
	s := txState(tx)
	s.requests = append(s.requests, *req)
	return nil
}

func findRequest(reqs []model.RedeemRequest, match func(model.RedeemRequest) bool) int {
	for i := range reqs {
		if match(reqs[i]) {
			return i
		}
	}
	return -1
}

func (r *memRequests) GetByID(ctx context.Context, id uuid.UUID) (*model.RedeemRequest, error) {
	var out *model.RedeemRequest
	r.db.read(func(s *memState) {
		if i := findRequest(s.requests, func(q model.RedeemRequest) bool { return q.ID == id }); i >= 0 {
			req := s.requests[i]
			out = &req
		}
	})
	return out, nil
}

func (r *memRequests) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.RedeemRequest, error) {
	s := txState(tx)
	i := findRequest(s.requests, func(q model.RedeemRequest) bool { return q.ID == id })
	if i < 0 {
		return nil, ErrRequestNotFound
	}
	req := s.requests[i]
	return &req, nil
}

func (r *memRequests) GetByVoucherID(ctx context.Context, tx database.TxQuerier, voucherID uuid.UUID) (*model.RedeemRequest, error) {
	s := txState(tx)
	i := findRequest(s.requests, func(q model.RedeemRequest) bool {
		return q.VoucherID != nil && *q.VoucherID == voucherID
	})
	if i < 0 {
		return nil, nil
	}
	req := s.requests[i]
	return &req, nil
}

func (r *memRequests) Resolve(ctx context.Context, tx database.TxQuerier, req *model.RedeemRequest) error {
	if err := r.db.check("requests.Resolve"); err != nil {
		return err
	}
	s := txState(tx)
	i := findRequest(s.requests, func(q model.RedeemRequest) bool { return q.ID == req.ID })
	if i < 0 {
		return ErrRequestNotFound
	}
	if s.requests[i].Status != model.RequestPending {
		return ErrAlreadyProcessed
	}
	s.requests[i] = *req
	return nil
}

func (r *memRequests) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.RedeemRequest, error) {
	out := []model.RedeemRequest{}
	r.db.read(func(s *memState) {
		for i := len(s.requests) - 1; i >= 0; i-- {
			if s.requests[i].AccountID == accountID {
				out = append(out, s.requests[i])
			}
		}
	})
	return out, nil
}

func (r *memRequests) ListPending(ctx context.Context) ([]model.RedeemRequest, error) {
	out := []model.RedeemRequest{}
	r.db.read(func(s *memState) {
		for _, q := range s.requests {
			if q.Status == model.RequestPending {
				out = append(out, q)
			}
		}
	})
	return out, nil
}

type memVouchers struct{ db *memDB }

func (r *memVouchers) Insert(ctx context.Context, tx database.TxQuerier, voucher *model.Voucher) error {
	if err := r.db.check("vouchers.Insert"); err != nil {
		return err
	}
	s := txState(tx)
	s.vouchers = append(s.vouchers, *voucher)
	return nil
}

func (r *memVouchers) GetForUpdate(ctx context.Context, tx database.TxQuerier, id uuid.UUID) (*model.Voucher, error) {
	for _, v := range txState(tx).vouchers {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, ErrVoucherNotFound
}

func (r *memVouchers) MarkUsed(ctx context.Context, tx database.TxQuerier, id uuid.UUID, usedAt time.Time) error {
	if err := r.db.check("vouchers.MarkUsed"); err != nil {
		return err
	}
	s := txState(tx)
	for i := range s.vouchers {
		if s.vouchers[i].ID != id {
			continue
		}
		if s.vouchers[i].Status != model.VoucherActive {
			return ErrAlreadyUsed
		}
		s.vouchers[i].Status = model.VoucherUsed
		s.vouchers[i].UsedAt = &usedAt
		return nil
	}
	return ErrVoucherNotFound
}

func (r *memVouchers) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Voucher, error) {
	out := []model.Voucher{}
	r.db.read(func(s *memState) {
		for i := len(s.vouchers) - 1; i >= 0; i-- {
			if s.vouchers[i].AccountID == accountID {
				out = append(out, s.vouchers[i])
			}
		}
	})
	return out, nil
}

type memTransactions struct{ db *memDB }

func (r *memTransactions) Append(ctx context.Context, tx database.TxQuerier, entry *model.TransactionEntry) error {
	if err := r.db.check("transactions.Append"); err != nil {
		return err
	}
	s := txState(tx)
	s.entries = append(s.entries, *entry)
	return nil
}

func (r *memTransactions) SumByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error) {
	var sum int64
	for _, e := range r.db.entries(accountID) {
		if e.Type == txType {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *memTransactions) CountByType(ctx context.Context, accountID uuid.UUID, txType model.TransactionType) (int64, error) {
	var n int64
	for _, e := range r.db.entries(accountID) {
		if e.Type == txType {
			n++
		}
	}
	return n, nil
}

func (r *memTransactions) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.TransactionEntry, error) {
	entries := r.db.entries(accountID)
	out := make([]model.TransactionEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// memRecorder captures activities and serves them back as an ActivityReader.
type memRecorder struct {
	mu    sync.Mutex
	items []model.Activity
	err   error
}

func (r *memRecorder) Record(ctx context.Context, activity model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, activity)
	return nil
}

func (r *memRecorder) recorded() []model.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Activity(nil), r.items...)
}

func (r *memRecorder) ListByTarget(ctx context.Context, targetID string, limit int) ([]model.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.ActivityLog{}
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		if r.items[i].TargetID == targetID {
			out = append(out, model.ActivityLog{ID: int64(i + 1), Activity: r.items[i]})
		}
	}
	return out, nil
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// fixture wires every service to one memDB.
type fixture struct {
	db         *memDB
	recorder   *memRecorder
	clock      *stepClock
	ledger     *LedgerService
	redemption *RedemptionService
	catalog    *CatalogService
	stats      *StatsService
}

func newFixture() *fixture {
	db := newMemDB()
	recorder := &memRecorder{}
	clock := newStepClock()
	repos := db.repos()
	repos.Activities = recorder
	return &fixture{
		db:         db,
		recorder:   recorder,
		clock:      clock,
		ledger:     NewLedgerService(db, repos, recorder, clock),
		redemption: NewRedemptionService(db, repos, recorder, clock),
		catalog:    NewCatalogService(repos, recorder, clock),
		stats:      NewStatsService(repos),
	}
}

// openAccount seeds a consistent account with the given balance and watermark.
func (f *fixture) openAccount(points, highest int64) uuid.UUID {
	id := uuid.New()
	f.db.seedAccount(model.Account{
		ID:            id,
		Points:        points,
		HighestPoints: highest,
		Tier:          tier.For(highest),
	})
	return id
}

func (f *fixture) addReward(cost int64, minimum string) uuid.UUID {
	id := uuid.New()
	r := model.Reward{ID: id, Name: "Reward " + id.String()[:8], PointsCost: cost, IsActive: true}
	if minimum != "" {
		t, err := tier.Parse(minimum)
		if err != nil {
			panic(err)
		}
		r.MinimumTier = &t
	}
	f.db.seedReward(r)
	return id
}
