//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"hookstudio/internal/catalog"
	"hookstudio/internal/config"
	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	red "hookstudio/internal/infra/redis"
	"hookstudio/internal/usecase"
)

// ---- In-memory store shared by all mock repositories ----

// memDB holds every table behind one mutex. MockTxManager holds the mutex for
// the whole callback, so transactions are serialized and fully isolated;
// repositories lock it themselves only when called outside a transaction.
type memDB struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	streaks  map[string]*model.StreakRecord
	unlocked map[string]*model.UnlockedAchievement // accountID|achievementID
	codes    map[string]*model.RedemptionCode      // by normalized code

	failures map[string][]error // injected errors, consumed in order per op
}

func newMemDB() *memDB {
	return &memDB{
		accounts: map[string]*model.Account{},
		streaks:  map[string]*model.StreakRecord{},
		unlocked: map[string]*model.UnlockedAchievement{},
		codes:    map[string]*model.RedemptionCode{},
		failures: map[string][]error{},
	}
}

// memTx marks calls made inside MockTxManager.WithTx.
type memTx struct{}

func (db *memDB) enter(tx repository.Tx) func() {
	if tx != nil {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// failNext makes the next call of op return err. Safe to call before use.
func (db *memDB) failNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = append(db.failures[op], err)
}

// take pops an injected failure; the caller holds the mutex.
func (db *memDB) take(op string) error {
	q := db.failures[op]
	if len(q) == 0 {
		return nil
	}
	db.failures[op] = q[1:]
	return q[0]
}

type memSnapshot struct {
	accounts map[string]*model.Account
	streaks  map[string]*model.StreakRecord
	unlocked map[string]*model.UnlockedAchievement
	codes    map[string]*model.RedemptionCode
}

func (db *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		accounts: make(map[string]*model.Account, len(db.accounts)),
		streaks:  make(map[string]*model.StreakRecord, len(db.streaks)),
		unlocked: make(map[string]*model.UnlockedAchievement, len(db.unlocked)),
		codes:    make(map[string]*model.RedemptionCode, len(db.codes)),
	}
	for k, v := range db.accounts {
		s.accounts[k] = v.Clone()
	}
	for k, v := range db.streaks {
		s.streaks[k] = v.Clone()
	}
	for k, v := range db.unlocked {
		cp := *v
		s.unlocked[k] = &cp
	}
	for k, v := range db.codes {
		s.codes[k] = v.Clone()
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.accounts, db.streaks, db.unlocked, db.codes = s.accounts, s.streaks, s.unlocked, s.codes
}

// ---- Transaction manager ----

type MockTxManager struct {
	db      *memDB
	mu      sync.Mutex
	Commits int
	Aborts  int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(db *memDB) *MockTxManager { return &MockTxManager{db: db} }

// WithTx runs fn under the store mutex and rolls every write back when fn fails.
// Commit hooks run after the mutex is released, as they would after a real commit.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	hookCtx, finish := repository.WithCommitHooks(ctx)
	m.db.mu.Lock()
	snap := m.db.snapshot()
	err := fn(hookCtx, memTx{})
	if err != nil {
		m.db.restore(snap)
	}
	m.db.mu.Unlock()
	finish(err == nil)

	m.mu.Lock()
	if err != nil {
		m.Aborts++
	} else {
		m.Commits++
	}
	m.mu.Unlock()
	return err
}

// ---- Accounts ----

type MockAccountRepo struct {
	db *memDB
	// UncachedReads counts reads made with repository.WithoutCache.
	UncachedReads atomic.Int64
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func (r *MockAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	defer r.db.enter(tx)()
	if err := r.db.take("accounts.create"); err != nil {
		return err
	}
	if _, ok := r.db.accounts[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.db.accounts[a.ID] = a.Clone()
	return nil
}

func (r *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if repository.CacheBypassed(ctx) {
		r.UncachedReads.Add(1)
	}
	defer r.db.enter(tx)()
	if err := r.db.take("accounts.find"); err != nil {
		return nil, err
	}
	a, ok := r.db.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MockAccountRepo) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	defer r.db.enter(tx)()
	if err := r.db.take("accounts.update"); err != nil {
		return err
	}
	cur, ok := r.db.accounts[a.ID]
	if !ok || cur.Version != a.Version {
		return domain.ErrConcurrencyConflict
	}
	if a.CoinBalance < 0 {
		return domain.ErrInsufficientBalance
	}
	a.Version++
	r.db.accounts[a.ID] = a.Clone()
	return nil
}

// ---- Streaks ----

type MockStreakRepo struct{ db *memDB }

var _ repository.StreakRepository = (*MockStreakRepo)(nil)

func (r *MockStreakRepo) FindOrCreate(ctx context.Context, tx repository.Tx, accountID string) (*model.StreakRecord, error) {
	defer r.db.enter(tx)()
	if err := r.db.take("streaks.find"); err != nil {
		return nil, err
	}
	s, ok := r.db.streaks[accountID]
	if !ok {
		s = model.NewStreakRecord(accountID)
		r.db.streaks[accountID] = s
	}
	return s.Clone(), nil
}

func (r *MockStreakRepo) Update(ctx context.Context, tx repository.Tx, s *model.StreakRecord) error {
	defer r.db.enter(tx)()
	if err := r.db.take("streaks.update"); err != nil {
		return err
	}
	cur, ok := r.db.streaks[s.AccountID]
	if !ok || cur.Version != s.Version {
		return domain.ErrConcurrencyConflict
	}
	s.Version++
	r.db.streaks[s.AccountID] = s.Clone()
	return nil
}

// ---- Achievements ----

type MockAchievementRepo struct {
	db      *memDB
	mu      sync.Mutex
	Inserts int
}

var _ repository.AchievementRepository = (*MockAchievementRepo)(nil)

func (r *MockAchievementRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, u *model.UnlockedAchievement) (*model.UnlockedAchievement, bool, error) {
	defer r.db.enter(tx)()
	if err := r.db.take("achievements.insert"); err != nil {
		return nil, false, err
	}
	key := u.AccountID + "|" + u.AchievementID
	if cur, ok := r.db.unlocked[key]; ok {
		cp := *cur
		return &cp, false, nil
	}
	cp := *u
	r.db.unlocked[key] = &cp
	r.mu.Lock()
	r.Inserts++
	r.mu.Unlock()
	out := cp
	return &out, true, nil
}

func (r *MockAchievementRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.UnlockedAchievement, error) {
	defer r.db.enter(tx)()
	if err := r.db.take("achievements.list"); err != nil {
		return nil, err
	}
	var out []*model.UnlockedAchievement
	for _, u := range r.db.unlocked {
		if u.AccountID == accountID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Redemption codes ----

type MockRedemptionCodeRepo struct{ db *memDB }

var _ repository.RedemptionCodeRepository = (*MockRedemptionCodeRepo)(nil)

func (r *MockRedemptionCodeRepo) Create(ctx context.Context, tx repository.Tx, c *model.RedemptionCode) error {
	defer r.db.enter(tx)()
	if _, ok := r.db.codes[c.Code]; ok {
		return domain.ErrAlreadyExists
	}
	r.db.codes[c.Code] = c.Clone()
	return nil
}

func (r *MockRedemptionCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error) {
	defer r.db.enter(tx)()
	c, ok := r.db.codes[model.NormalizeCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MockRedemptionCodeRepo) ConsumeUse(ctx context.Context, tx repository.Tx, codeID, accountID string) error {
	defer r.db.enter(tx)()
	if err := r.db.take("codes.consume"); err != nil {
		return err
	}
	for _, c := range r.db.codes {
		if c.ID == codeID {
			return c.Consume(accountID)
		}
	}
	return domain.ErrNotFound
}

// get reads a stored code for assertions.
func (r *MockRedemptionCodeRepo) get(code string) *model.RedemptionCode {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.codes[model.NormalizeCode(code)].Clone()
}

// ---- Content counts ----

type MockContentCounter struct {
	Templates, Collections, ScheduledPosts int
	Err                                    error
}

var _ repository.ContentCounter = (*MockContentCounter)(nil)

func (m *MockContentCounter) CountTemplates(ctx context.Context, accountID string) (int, error) {
	return m.Templates, m.Err
}
func (m *MockContentCounter) CountCollections(ctx context.Context, accountID string) (int, error) {
	return m.Collections, m.Err
}
func (m *MockContentCounter) CountScheduledPosts(ctx context.Context, accountID string) (int, error) {
	return m.ScheduledPosts, m.Err
}

// ---- In-memory Locker (implements redis.Locker port) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ red.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrConcurrencyConflict
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- Mock token counter ----

type MockTokenCounter struct{ N int64 }

func (m MockTokenCounter) Count(text string) int64 { return m.N }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// day returns midday UTC of the given date, away from any boundary.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// ---- Wiring ----

type testEnv struct {
	db       *memDB
	tm       *MockTxManager
	accounts *MockAccountRepo
	streakDB *MockStreakRepo
	achDB    *MockAchievementRepo
	codes    *MockRedemptionCodeRepo
	counts   *MockContentCounter

	ledger       usecase.LedgerUseCase
	streaks      usecase.StreakUseCase
	achievements usecase.AchievementUseCase
	redemption   usecase.RedemptionUseCase
	activity     usecase.ActivityUseCase
}

func newTestEnv(t *testing.T, locker red.Locker) *testEnv {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	log := newTestLogger()
	db := newMemDB()
	e := &testEnv{
		db:       db,
		tm:       NewMockTxManager(db),
		accounts: &MockAccountRepo{db: db},
		streakDB: &MockStreakRepo{db: db},
		achDB:    &MockAchievementRepo{db: db},
		codes:    &MockRedemptionCodeRepo{db: db},
		counts:   &MockContentCounter{},
	}
	limits := map[string]config.PlanLimit{"free": {DailyThreads: 3}}
	e.ledger = usecase.NewLedgerUseCase(e.accounts, e.tm, limits, log)
	e.streaks = usecase.NewStreakUseCase(e.streakDB, e.tm, log)
	e.achievements = usecase.NewAchievementUseCase(cat, e.achDB, e.accounts, e.streakDB, e.counts, log)
	e.redemption = usecase.NewRedemptionUseCase(e.codes, e.ledger, e.tm, locker, time.Second, log, true)
	e.activity = usecase.NewActivityUseCase(e.ledger, e.streaks, e.achievements, MockTokenCounter{N: 42}, log)
	return e
}

// seedAccount stores a fresh free account.
func (e *testEnv) seedAccount(t *testing.T, id string, now time.Time) *model.Account {
	t.Helper()
	a, err := model.NewAccount(id, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.accounts.Create(context.Background(), nil, a); err != nil {
		t.Fatal(err)
	}
	return a
}

func (e *testEnv) account(t *testing.T, id string) *model.Account {
	t.Helper()
	a, err := e.accounts.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("load account %s: %v", id, err)
	}
	return a
}

// seedCode stores a code built from spec through the redemption use case.
func (e *testEnv) seedCode(t *testing.T, spec usecase.CodeSpec, now time.Time) *model.RedemptionCode {
	t.Helper()
	c, err := e.redemption.CreateCode(context.Background(), spec, now)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	return c
}
