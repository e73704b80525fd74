// Package session owns the signed-in user, the current tenant and the access
// tokens of the client application.
//
// A Manager restores a persisted session optimistically, revalidates it in the
// background, and exposes permission checks derived from the user's role.
// Every path that ends a session (explicit logout, a rejected token, a logout
// broadcast) goes through the same clear routine, and results of operations
// that started before a clear are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ieazie/doc-extract/internal/authclient"
	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/broadcast"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/storage"
)

// AuthService is the remote authentication backend.
// Authenticated calls read the bearer token from ctx (see authclient.WithAccessToken).
type AuthService interface {
	Login(ctx context.Context, creds model.Credentials) (model.LoginResult, error)
	CurrentUser(ctx context.Context) (model.User, error)
	CurrentTenant(ctx context.Context) (model.Tenant, error)
	SwitchTenant(ctx context.Context, tenantID string) error
}

// Navigator moves the UI to the home view after a successful login.
type Navigator interface {
	NavigateHome()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

// NavigateHome implements Navigator.
func (f NavigatorFunc) NavigateHome() { f() }

type noopNavigator struct{}

func (noopNavigator) NavigateHome() {}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// WithBus sets the logout bus. Defaults to broadcast.Default().
func WithBus(b *broadcast.Bus) Option { return func(m *Manager) { m.bus = b } }

// WithNavigator sets the post-login navigation hook.
func WithNavigator(n Navigator) Option { return func(m *Manager) { m.nav = n } }

// Manager is the session and authorization manager. It is safe for concurrent use.
type Manager struct {
	svc      AuthService
	kv       storage.KV
	log      *zap.Logger
	bus      *broadcast.Bus
	nav      Navigator
	validate *validator.Validate

	// pmu serializes storage writes with clears so a late write never
	// re-persists a session that was already cleared.
	pmu sync.Mutex

	mu          sync.RWMutex
	c           core
	epoch       uint64
	busy        bool
	initialized bool

	lmu       sync.Mutex
	nextL     uint64
	listeners map[uint64]func(State)

	// seq stamps snapshots under mu; notify delivers them in seq order
	// and drops any older than the last one delivered.
	seq        uint64
	nmu        sync.Mutex
	pending    []stamped
	delivering bool
	delivered  uint64

	unsubBus  func()
	revalDone chan struct{}
	bgCtx     context.Context
	bgCancel  context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a manager in PhaseUninitialized. Call Initialize before use.
func New(svc AuthService, kv storage.KV, opts ...Option) *Manager {
	bg, cancel := context.WithCancel(context.Background())
	m := &Manager{
		svc:       svc,
		kv:        kv,
		log:       zap.NewNop(),
		bus:       broadcast.Default(),
		nav:       noopNavigator{},
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		listeners: make(map[uint64]func(State)),
		revalDone: make(chan struct{}),
		bgCtx:     bg,
		bgCancel:  cancel,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Initialize restores the persisted session and subscribes to logout broadcasts.
//
// A complete persisted session is applied at once (optimistic, Verified=false)
// and revalidated in the background; see Revalidation. Missing or corrupt data
// leaves the manager unauthenticated. Initialize may be called only once.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return errs.ErrAlreadyInitialized
	}
	m.initialized = true
	m.c.reset(PhaseRestoring)
	epoch := m.epoch
	snap := m.stamp()
	m.mu.Unlock()
	m.notify(snap)

	m.unsubBus = m.bus.Subscribe(m.onLogout)

	r, err := load(ctx, m.kv)
	if err != nil {
		m.log.Warn("discarding persisted session", zap.Error(err))
		if errors.Is(err, errCorrupt) {
			m.pmu.Lock()
			logStorageErr(m.log, "wipe", wipe(ctx, m.kv))
			m.pmu.Unlock()
		}
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// cleared while restoring
		m.mu.Unlock()
		close(m.revalDone)
		return nil
	}
	if r == nil {
		m.c.reset(PhaseUnauthenticated)
		snap = m.stamp()
		m.mu.Unlock()
		close(m.revalDone)
		m.notify(snap)
		return nil
	}
	m.c.authenticate(r.tokens, r.user, r.tenant, false)
	snap = m.stamp()
	m.mu.Unlock()

	m.log.Info("session restored", zap.String("user_id", r.user.ID), zap.Bool("verified", false))
	m.notify(snap)

	m.wg.Add(1)
	go m.revalidate(epoch, r.tokens.AccessToken)
	return nil
}

// Revalidation returns a channel closed once Initialize has finished all of
// its work, including background revalidation of a restored session.
func (m *Manager) Revalidation() <-chan struct{} { return m.revalDone }

func (m *Manager) revalidate(epoch uint64, token string) {
	defer m.wg.Done()
	defer close(m.revalDone)

	ctx := authclient.WithAccessToken(m.bgCtx, token)
	user, err := m.svc.CurrentUser(ctx)
	if err != nil {
		m.handleRevalidateErr(epoch, "user", err)
		return
	}

	var tenant *model.Tenant
	if user.HasTenant() {
		t, err := m.svc.CurrentTenant(ctx)
		switch {
		case err == nil:
			tenant = &t
		case errs.IsAuth(err):
			m.handleRevalidateErr(epoch, "tenant", err)
			return
		default:
			m.log.Warn("tenant revalidation failed, keeping stored tenant", zap.Error(err))
		}
	}

	_, err = m.commit(m.bgCtx, epoch, false, func(c *core) {
		c.user = &user
		if tenant != nil {
			c.tenant = tenant
		}
		c.verified = true
	})
	if err != nil {
		m.log.Debug("revalidation result dropped", zap.Error(err))
		return
	}
	m.log.Info("session verified", zap.String("user_id", user.ID))
}

func (m *Manager) handleRevalidateErr(epoch uint64, what string, err error) {
	switch {
	case errs.IsAuth(err):
		m.log.Info("stored session rejected by backend", zap.String("step", what))
		m.clearIf(epoch)
	case errors.Is(err, context.Canceled):
	default:
		m.log.Warn("session revalidation failed, keeping optimistic session",
			zap.String("step", what), zap.Error(err))
	}
}

// Login signs in with credentials and persists the new session.
//
// When the user record names a tenant it is fetched as well; a failure
// there is logged and the session proceeds without a tenant. On success the
// navigator is called once. Errors from the backend are returned wrapped and
// leave the previous state untouched.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) (State, error) {
	if err := m.validate.Struct(creds); err != nil {
		return m.State(), fmt.Errorf("login: %w: %v", errs.ErrInvalidInput, err)
	}
	o, err := m.begin(false)
	if err != nil {
		return m.State(), fmt.Errorf("login: %w", err)
	}
	defer o.done()

	res, err := m.svc.Login(ctx, creds)
	if err != nil {
		m.log.Info("login failed", zap.String("email", creds.Email), zap.Error(err))
		return m.State(), fmt.Errorf("login: %w", err)
	}

	var tenant *model.Tenant
	if res.User.HasTenant() {
		t, err := m.svc.CurrentTenant(authclient.WithAccessToken(ctx, res.AccessToken))
		if err != nil {
			m.log.Warn("tenant fetch after login failed", zap.String("user_id", res.User.ID), zap.Error(err))
		} else {
			tenant = &t
		}
	}

	st, err := m.commit(ctx, o.epoch, true, func(c *core) {
		c.authenticate(res.Tokens, res.User, tenant, true)
	})
	if err != nil {
		return st, fmt.Errorf("login: %w", err)
	}
	m.log.Info("logged in",
		zap.String("user_id", res.User.ID),
		zap.String("role", res.User.Role.String()),
		zap.String("tenant_id", res.User.TenantRef()),
	)
	m.nav.NavigateHome()
	return st, nil
}

// Logout clears the in-memory session and the persisted one. It is idempotent
// and never fails; storage errors are logged.
func (m *Manager) Logout(ctx context.Context) {
	m.clear(ctx, nil)
}

// SwitchTenant moves the signed-in user into another tenant.
//
// After the backend accepts the switch, the user and the tenant are fetched
// concurrently and replaced together. On any failure the local session keeps
// its previous user and tenant; a rejected token ends the session.
func (m *Manager) SwitchTenant(ctx context.Context, tenantID string) (State, error) {
	o, err := m.begin(true)
	if err != nil {
		return m.State(), fmt.Errorf("switch tenant: %w", err)
	}
	defer o.done()

	actx := authclient.WithAccessToken(ctx, o.token)
	if err := m.svc.SwitchTenant(actx, tenantID); err != nil {
		return m.failAuthed(o.epoch, "switch tenant", err)
	}

	var (
		user   model.User
		tenant model.Tenant
	)
	g, gctx := errgroup.WithContext(actx)
	g.Go(func() error {
		u, err := m.svc.CurrentUser(gctx)
		user = u
		return err
	})
	g.Go(func() error {
		t, err := m.svc.CurrentTenant(gctx)
		tenant = t
		return err
	})
	if err := g.Wait(); err != nil {
		return m.failAuthed(o.epoch, "switch tenant: refresh", err)
	}
	if tenant.ID != tenantID {
		return m.State(), fmt.Errorf("switch tenant: %w: backend reports tenant %q", errs.ErrTenantSwitch, tenant.ID)
	}
	if user.TenantRef() != tenantID {
		return m.State(), fmt.Errorf("switch tenant: %w: user still on tenant %q", errs.ErrTenantSwitch, user.TenantRef())
	}

	st, err := m.commit(ctx, o.epoch, true, func(c *core) {
		c.user = &user
		c.tenant = &tenant
		c.verified = true
	})
	if err != nil {
		return st, fmt.Errorf("switch tenant: %w", err)
	}
	m.log.Info("tenant switched", zap.String("user_id", user.ID), zap.String("tenant_id", tenant.ID))
	return st, nil
}

// RefreshTenant re-fetches the current tenant of a user affiliated with one.
// It is a no-op when the user record names no tenant.
func (m *Manager) RefreshTenant(ctx context.Context) (State, error) {
	o, err := m.begin(true)
	if err != nil {
		return m.State(), fmt.Errorf("refresh tenant: %w", err)
	}
	defer o.done()
	if !o.hasTenant {
		return m.State(), nil
	}

	t, err := m.svc.CurrentTenant(authclient.WithAccessToken(ctx, o.token))
	if err != nil {
		return m.failAuthed(o.epoch, "refresh tenant", err)
	}
	st, err := m.commit(ctx, o.epoch, false, func(c *core) { c.tenant = &t })
	if err != nil {
		return st, fmt.Errorf("refresh tenant: %w", err)
	}
	return st, nil
}

// failAuthed ends the session on ErrUnauthorized and wraps err.
func (m *Manager) failAuthed(epoch uint64, op string, err error) (State, error) {
	if errs.IsAuth(err) {
		m.log.Info("credentials rejected, clearing session", zap.String("op", op))
		m.clearIf(epoch)
	} else {
		m.log.Warn("session operation failed", zap.String("op", op), zap.Error(err))
	}
	return m.State(), fmt.Errorf("%s: %w", op, err)
}

// HasPermission reports whether the signed-in user's role grants p.
// It is false when nobody is signed in.
func (m *Manager) HasPermission(p authz.Permission) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.c.phase != PhaseAuthenticated || m.c.user == nil {
		return false
	}
	return authz.Allowed(m.c.user.Role, p)
}

// HasRole reports whether the signed-in user has role r.
func (m *Manager) HasRole(r authz.Role) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.c.phase == PhaseAuthenticated && m.c.user != nil && m.c.user.Role == r
}

// IsPlatformAdmin reports whether the user is a platform administrator.
func (m *Manager) IsPlatformAdmin() bool { return m.HasRole(authz.RolePlatformAdmin) }

// IsTenantAdmin reports whether the user administers their tenant.
func (m *Manager) IsTenantAdmin() bool { return m.HasRole(authz.RoleTenantAdmin) }

// IsAnyAdmin reports whether the user has either admin role.
func (m *Manager) IsAnyAdmin() bool { return m.IsPlatformAdmin() || m.IsTenantAdmin() }

// Permissions returns the sorted permissions of the signed-in user.
func (m *Manager) Permissions() []authz.Permission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.c.phase != PhaseAuthenticated || m.c.user == nil {
		return nil
	}
	return authz.PermissionsFor(m.c.user.Role).List()
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.c.snapshot()
}

// AccessToken returns the current bearer token or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.c.tokens == nil {
		return ""
	}
	return m.c.tokens.AccessToken
}

// Subscribe registers fn to be called with the new state after every change.
// Calls happen outside internal locks, one at a time and in the order the
// changes were made. A state superseded before its delivery started is skipped.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.lmu.Lock()
	id := m.nextL
	m.nextL++
	m.listeners[id] = fn
	m.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lmu.Lock()
			delete(m.listeners, id)
			m.lmu.Unlock()
		})
	}
}

// Teardown detaches the manager from the logout bus and waits for background work.
func (m *Manager) Teardown() {
	if m.unsubBus != nil {
		m.unsubBus()
	}
	m.bgCancel()
	m.wg.Wait()
}

// op describes a mutating operation in flight.
type op struct {
	epoch     uint64
	token     string
	hasTenant bool // user record names a tenant
	done      func()
}

// begin marks a mutating operation in flight and captures the session it started from.
func (m *Manager) begin(needAuth bool) (op, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if needAuth && m.c.phase != PhaseAuthenticated {
		return op{}, errs.ErrNotAuthenticated
	}
	if m.busy {
		return op{}, errs.ErrBusy
	}
	m.busy = true
	o := op{epoch: m.epoch, done: func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}}
	if m.c.tokens != nil {
		o.token = m.c.tokens.AccessToken
	}
	if m.c.user != nil {
		o.hasTenant = m.c.user.HasTenant()
	}
	return o, nil
}

// commit applies mutate if no clear happened since epoch, persists the result
// and notifies listeners. bump invalidates operations started before it.
func (m *Manager) commit(ctx context.Context, epoch uint64, bump bool, mutate func(*core)) (State, error) {
	m.pmu.Lock()
	m.mu.Lock()
	if m.epoch != epoch {
		snap := m.c.snapshot()
		m.mu.Unlock()
		m.pmu.Unlock()
		return snap, errs.ErrSuperseded
	}
	mutate(&m.c)
	if bump {
		m.epoch++
	}
	snap := m.stamp()
	m.mu.Unlock()

	logStorageErr(m.log, "save", save(context.WithoutCancel(ctx), m.kv, snap.State))
	m.pmu.Unlock()

	m.notify(snap)
	return snap.State, nil
}

// clearIf clears the session unless it was already replaced or cleared since epoch.
func (m *Manager) clearIf(epoch uint64) {
	m.clear(m.bgCtx, func() bool { return m.epoch == epoch })
}

// clear resets the session and wipes storage. match, when set, runs under
// m.mu and may veto the clear.
func (m *Manager) clear(ctx context.Context, match func() bool) {
	m.pmu.Lock()
	m.mu.Lock()
	if match != nil && !match() {
		m.mu.Unlock()
		m.pmu.Unlock()
		return
	}
	wasAuthed := m.c.phase == PhaseAuthenticated
	m.epoch++
	m.c.reset(PhaseUnauthenticated)
	snap := m.stamp()
	m.mu.Unlock()

	logStorageErr(m.log, "wipe", wipe(context.WithoutCancel(ctx), m.kv))
	m.pmu.Unlock()

	if wasAuthed {
		m.log.Info("session cleared")
	}
	m.notify(snap)
}

// onLogout handles a logout broadcast. Events naming a token other than the
// current one come from superseded sessions and are ignored.
func (m *Manager) onLogout(ev broadcast.Event) {
	m.log.Info("logout broadcast received",
		zap.String("reason", string(ev.Reason)),
		zap.String("source", ev.Source),
	)
	m.clear(context.Background(), func() bool {
		if ev.Token == "" || m.c.tokens == nil {
			return true
		}
		return ev.Token == m.c.tokens.AccessToken
	})
}

type stamped struct {
	State
	seq uint64
}

// stamp snapshots the session with the next sequence number. Callers hold m.mu.
func (m *Manager) stamp() stamped {
	m.seq++
	return stamped{State: m.c.snapshot(), seq: m.seq}
}

// notify queues s and, unless another goroutine is already delivering,
// drains the queue. Listeners therefore never see an older state after a
// newer one, and a change made from inside a listener is delivered after
// the listener returns.
func (m *Manager) notify(s stamped) {
	m.nmu.Lock()
	m.pending = append(m.pending, s)
	if m.delivering {
		m.nmu.Unlock()
		return
	}
	m.delivering = true
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		if next.seq <= m.delivered {
			continue
		}
		m.delivered = next.seq
		m.nmu.Unlock()
		m.deliver(next.State)
		m.nmu.Lock()
	}
	m.delivering = false
	m.nmu.Unlock()
}

func (m *Manager) deliver(s State) {
	m.lmu.Lock()
	ids := make([]uint64, 0, len(m.listeners))
	fns := make(map[uint64]func(State), len(m.listeners))
	for id, fn := range m.listeners {
		ids = append(ids, id)
		fns[id] = fn
	}
	m.lmu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](s)
	}
}
