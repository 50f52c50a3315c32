package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"savingscredit/internal/auth"
	"savingscredit/internal/config"
	"savingscredit/internal/db"
	"savingscredit/internal/logger"
	"savingscredit/internal/models"
	"savingscredit/internal/notifications"
	"savingscredit/internal/services"
	"savingscredit/internal/store"
	"savingscredit/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(db.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(db.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type txCounts struct {
	commits   int64
	rollbacks int64
}

type noopDriver struct {
	counts *txCounts
}

func (d noopDriver) Open(string) (driver.Conn, error) {
	return &noopConn{counts: d.counts}, nil
}

type noopConn struct {
	counts *txCounts
}

func (c *noopConn) Prepare(string) (driver.Stmt, error) {
	return &noopStmt{}, nil
}

func (c *noopConn) Close() error {
	return nil
}

func (c *noopConn) Begin() (driver.Tx, error) {
	return &noopTx{counts: c.counts}, nil
}

func (c *noopConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return &noopTx{counts: c.counts}, nil
}

type noopStmt struct{}

func (s *noopStmt) Close() error {
	return nil
}

func (s *noopStmt) NumInput() int {
	return -1
}

func (s *noopStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (s *noopStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, fmt.Errorf("not supported")
}

type noopTx struct {
	counts *txCounts
}

func (t *noopTx) Commit() error {
	atomic.AddInt64(&t.counts.commits, 1)
	return nil
}

func (t *noopTx) Rollback() error {
	atomic.AddInt64(&t.counts.rollbacks, 1)
	return nil
}

var noopDriverCounter uint64

// newTestTxRunner hands real *sqlx.Tx values to the handler so commit and
// rollback can be asserted.
func newTestTxRunner(t *testing.T) (db.TxRunner, *txCounts) {
	t.Helper()
	counts := &txCounts{}
	name := fmt.Sprintf("noop-%d", atomic.AddUint64(&noopDriverCounter, 1))
	sql.Register(name, noopDriver{counts: counts})
	conn, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open noop db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return db.NewTxRunner(sqlx.NewDb(conn, name)), counts
}

type stubUserStore struct {
	createFn         func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn     func(ctx context.Context, email string) (models.User, error)
	getByUsernameFn  func(ctx context.Context, username string) (models.User, error)
	getByIDFn        func(ctx context.Context, userID string) (models.User, error)
	updateProfileFn  func(ctx context.Context, userID string, input store.ProfileInput) (models.User, error)
	updatePasswordFn func(ctx context.Context, userID, passwordHash string) error
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) UpdateProfile(ctx context.Context, userID string, input store.ProfileInput) (models.User, error) {
	if s.updateProfileFn == nil {
		return models.User{ID: userID}, nil
	}
	return s.updateProfileFn(ctx, userID, input)
}

func (s stubUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, userID, passwordHash)
}

type stubAccountDirectory struct {
	listFn      func(ctx context.Context, limit, offset int) ([]store.AccountWithUser, error)
	countFn     func(ctx context.Context) (int, error)
	reconcileFn func(ctx context.Context) ([]store.LedgerCheck, error)
}

func (s stubAccountDirectory) ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.AccountWithUser, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

func (s stubAccountDirectory) CountAll(ctx context.Context) (int, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx)
}

func (s stubAccountDirectory) Reconcile(ctx context.Context) ([]store.LedgerCheck, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx)
}

type stubAdminStore struct {
	statusFn      func(ctx context.Context, userID string) (store.AdminStatus, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	rolesFn       func(ctx context.Context, userID string) ([]string, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, tx store.Execer, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) Status(ctx context.Context, userID string) (store.AdminStatus, error) {
	if s.statusFn == nil {
		return store.AdminStatus{}, nil
	}
	return s.statusFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) Roles(ctx context.Context, userID string) ([]string, error) {
	if s.rolesFn == nil {
		return nil, nil
	}
	return s.rolesFn(ctx, userID)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return true, nil
	}
	return s.hasAnyAdminFn(ctx)
}

func superAdmin() stubAdminStore {
	return stubAdminStore{statusFn: func(context.Context, string) (store.AdminStatus, error) {
		return store.AdminStatus{IsAdmin: true, IsSuper: true}, nil
	}}
}

type stubAuditStore struct {
	logFn   func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
	listFn  func(ctx context.Context, limit, offset int) ([]store.AuditLog, error)
	countFn func(ctx context.Context) (int, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]store.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

func (s stubAuditStore) Count(ctx context.Context) (int, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx)
}

type stubSavings struct {
	createFn    func(ctx context.Context, req services.CreateAccountRequest) (models.SavingsAccount, error)
	getFn       func(ctx context.Context, userID string) (models.SavingsAccount, error)
	balanceFn   func(ctx context.Context, userID string) (services.Balance, error)
	depositFn   func(ctx context.Context, req services.MovementRequest) (models.Transaction, error)
	withdrawFn  func(ctx context.Context, req services.MovementRequest) (models.Transaction, error)
	listFn      func(ctx context.Context, userID string, page services.PageRequest) (services.Page[models.Transaction], error)
	freezeFn    func(ctx context.Context, userID string) error
	unfreezeFn  func(ctx context.Context, userID string) error
	updateFn    func(ctx context.Context, req services.UpdateAccountRequest) (models.SavingsAccount, error)
	deleteFn    func(ctx context.Context, userID string) error
	selfCheckFn func(ctx context.Context, userID string) (store.LedgerCheck, error)
}

func (s stubSavings) CreateAccount(ctx context.Context, req services.CreateAccountRequest) (models.SavingsAccount, error) {
	if s.createFn == nil {
		return models.SavingsAccount{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubSavings) GetAccount(ctx context.Context, userID string) (models.SavingsAccount, error) {
	if s.getFn == nil {
		return models.SavingsAccount{}, nil
	}
	return s.getFn(ctx, userID)
}

func (s stubSavings) GetBalance(ctx context.Context, userID string) (services.Balance, error) {
	if s.balanceFn == nil {
		return services.Balance{}, nil
	}
	return s.balanceFn(ctx, userID)
}

func (s stubSavings) Deposit(ctx context.Context, req services.MovementRequest) (models.Transaction, error) {
	if s.depositFn == nil {
		return models.Transaction{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubSavings) Withdraw(ctx context.Context, req services.MovementRequest) (models.Transaction, error) {
	if s.withdrawFn == nil {
		return models.Transaction{}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubSavings) ListTransactions(ctx context.Context, userID string, page services.PageRequest) (services.Page[models.Transaction], error) {
	if s.listFn == nil {
		return services.NewPage[models.Transaction](nil, 0, page), nil
	}
	return s.listFn(ctx, userID, page)
}

func (s stubSavings) Freeze(ctx context.Context, userID string) error {
	if s.freezeFn == nil {
		return nil
	}
	return s.freezeFn(ctx, userID)
}

func (s stubSavings) Unfreeze(ctx context.Context, userID string) error {
	if s.unfreezeFn == nil {
		return nil
	}
	return s.unfreezeFn(ctx, userID)
}

func (s stubSavings) UpdateAccount(ctx context.Context, req services.UpdateAccountRequest) (models.SavingsAccount, error) {
	if s.updateFn == nil {
		return models.SavingsAccount{}, nil
	}
	return s.updateFn(ctx, req)
}

func (s stubSavings) DeleteAccount(ctx context.Context, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, userID)
}

func (s stubSavings) SelfCheck(ctx context.Context, userID string) (store.LedgerCheck, error) {
	if s.selfCheckFn == nil {
		return store.LedgerCheck{}, nil
	}
	return s.selfCheckFn(ctx, userID)
}

type stubCredit struct {
	requestFn        func(ctx context.Context, app services.CreditApplication) (models.CreditRequest, error)
	listFn           func(ctx context.Context, userID, status string, page services.PageRequest) (services.Page[models.CreditRequest], error)
	getFn            func(ctx context.Context, userID, requestID string) (services.CreditDetails, error)
	repayFn          func(ctx context.Context, req services.RepaymentRequest) (services.RepaymentResult, error)
	listRepaymentsFn func(ctx context.Context, userID, requestID string, page services.PageRequest) (services.Page[models.CreditRepayment], error)
	approveFn        func(ctx context.Context, requestID, adminID string) (models.CreditRequest, error)
	rejectFn         func(ctx context.Context, requestID, adminID, reason string) (models.CreditRequest, error)
}

func (s stubCredit) RequestCredit(ctx context.Context, app services.CreditApplication) (models.CreditRequest, error) {
	if s.requestFn == nil {
		return models.CreditRequest{}, nil
	}
	return s.requestFn(ctx, app)
}

func (s stubCredit) ListCreditRequests(ctx context.Context, userID, status string, page services.PageRequest) (services.Page[models.CreditRequest], error) {
	if s.listFn == nil {
		return services.NewPage[models.CreditRequest](nil, 0, page), nil
	}
	return s.listFn(ctx, userID, status, page)
}

func (s stubCredit) GetCreditRequest(ctx context.Context, userID, requestID string) (services.CreditDetails, error) {
	if s.getFn == nil {
		return services.CreditDetails{}, nil
	}
	return s.getFn(ctx, userID, requestID)
}

func (s stubCredit) MakeRepayment(ctx context.Context, req services.RepaymentRequest) (services.RepaymentResult, error) {
	if s.repayFn == nil {
		return services.RepaymentResult{}, nil
	}
	return s.repayFn(ctx, req)
}

func (s stubCredit) ListRepayments(ctx context.Context, userID, requestID string, page services.PageRequest) (services.Page[models.CreditRepayment], error) {
	if s.listRepaymentsFn == nil {
		return services.NewPage[models.CreditRepayment](nil, 0, page), nil
	}
	return s.listRepaymentsFn(ctx, userID, requestID, page)
}

func (s stubCredit) ApproveCredit(ctx context.Context, requestID, adminID string) (models.CreditRequest, error) {
	if s.approveFn == nil {
		return models.CreditRequest{}, nil
	}
	return s.approveFn(ctx, requestID, adminID)
}

func (s stubCredit) RejectCredit(ctx context.Context, requestID, adminID, reason string) (models.CreditRequest, error) {
	if s.rejectFn == nil {
		return models.CreditRequest{}, nil
	}
	return s.rejectFn(ctx, requestID, adminID, reason)
}

type stubNotifications struct {
	createFn   func(ctx context.Context, msg notifications.Message) (models.Notification, error)
	listFn     func(ctx context.Context, userID string, unreadOnly bool, page services.PageRequest) (services.Page[models.Notification], error)
	markReadFn func(ctx context.Context, userID, notificationID string) (models.Notification, error)
}

func (s stubNotifications) Create(ctx context.Context, msg notifications.Message) (models.Notification, error) {
	if s.createFn == nil {
		return models.Notification{}, nil
	}
	return s.createFn(ctx, msg)
}

func (s stubNotifications) List(ctx context.Context, userID string, unreadOnly bool, page services.PageRequest) (services.Page[models.Notification], error) {
	if s.listFn == nil {
		return services.NewPage[models.Notification](nil, 0, page), nil
	}
	return s.listFn(ctx, userID, unreadOnly, page)
}

func (s stubNotifications) MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	if s.markReadFn == nil {
		return models.Notification{}, nil
	}
	return s.markReadFn(ctx, userID, notificationID)
}

// newTestHandler fills every dependency the test leaves empty with a stub.
func newTestHandler(deps Deps) *Handler {
	deps.Config = config.Config{
		AppEnv:         "test",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.TxRunner == nil {
		deps.TxRunner = fakeTxRunner{}
	}
	if deps.Users == nil {
		deps.Users = stubUserStore{}
	}
	if deps.Accounts == nil {
		deps.Accounts = stubAccountDirectory{}
	}
	if deps.Admin == nil {
		deps.Admin = stubAdminStore{}
	}
	if deps.Audit == nil {
		deps.Audit = stubAuditStore{}
	}
	if deps.Savings == nil {
		deps.Savings = stubSavings{}
	}
	if deps.Credit == nil {
		deps.Credit = stubCredit{}
	}
	if deps.Notifications == nil {
		deps.Notifications = stubNotifications{}
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub(logger.Discard())
	}
	return New(deps)
}

// serve sends a request through the full router. An empty userID sends no token.
func serve(t *testing.T, h *Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

type testEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
	Error      string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env testEnvelope, dest any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("failed to decode data %s: %v", env.Data, err)
	}
}

func sqlNoRows() error {
	return sql.ErrNoRows
}

func stringPtr(value string) *string {
	return &value
}
