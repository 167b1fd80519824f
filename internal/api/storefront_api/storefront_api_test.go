package storefront_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/services/auth"
	"github.com/BearBump/xtreeshop/internal/services/catalog"
	"github.com/BearBump/xtreeshop/internal/services/orders"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// memStore backs the auth, catalog and orders services in memory.
type memStore struct {
	mu       sync.Mutex
	users    map[uint64]*models.User
	sessions map[string]*models.Session
	products map[uint64]*models.Product
	orders   map[uint64]*models.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint64]*models.User{},
		sessions: map[string]*models.Session{},
		products: map[uint64]*models.Product{},
		orders:   map[uint64]*models.Order{},
	}
}

func (m *memStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	cp.ID = uint64(len(m.users) + 1)
	m.users[cp.ID] = &cp
	return &cp, nil
}
func (m *memStore) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}
func (m *memStore) UserExists(ctx context.Context, email, username string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var e, n bool
	for _, u := range m.users {
		e = e || u.Email == email
		n = n || u.Username == username
	}
	return e, n, nil
}
func (m *memStore) UpdateProfile(ctx context.Context, userID uint64, firstName, lastName, address string) error {
	return nil
}
func (m *memStore) UpdatePassword(ctx context.Context, userID uint64, hash string) error { return nil }
func (m *memStore) GetProfileStats(ctx context.Context, userID uint64) (int64, int64, error) {
	return 2, 24000, nil
}
func (m *memStore) UpsertSuperadmin(ctx context.Context, u *models.User) (*models.User, bool, error) {
	return nil, false, errors.New("not used")
}
func (m *memStore) CreateSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}
func (m *memStore) GetSessionUser(ctx context.Context, id string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !s.ExpiresAt.After(now) {
		return nil, models.ErrNotFound
	}
	return m.GetUserByID(ctx, s.UserID)
}
func (m *memStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	out := []*models.Product{}
	for i := uint64(1); i <= uint64(len(m.products)); i++ {
		if p, ok := m.products[i]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
func (m *memStore) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	out := []*models.Order{}
	for _, o := range m.orders {
		if f.UserID == nil || *f.UserID == o.UserID {
			out = append(out, o)
		}
	}
	return out, nil
}
func (m *memStore) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}
func (m *memStore) ListOrderLines(ctx context.Context, orderID uint64) ([]*models.OrderLine, error) {
	return []*models.OrderLine{{OrderID: orderID, ProductName: "Xtreme Lime - Pack de 12 latas", Quantity: 12, UnitPrice: 1000, LineTotal: 11400}}, nil
}
func (m *memStore) ListOrderTracking(ctx context.Context, orderID uint64) ([]*models.TrackingEntry, error) {
	return []*models.TrackingEntry{}, nil
}
func (m *memStore) GetCurrentStatus(ctx context.Context, orderID uint64) (*models.CurrentStatus, error) {
	return &models.CurrentStatus{OrderID: orderID, Status: models.StatusPaymentAccepted, At: time.Now().UTC()}, nil
}
func (m *memStore) ApplyStatusUpdate(ctx context.Context, upd pgstore.StatusUpdate) (bool, error) {
	return false, nil
}
func (m *memStore) AppendOrderStatus(ctx context.Context, orderID uint64, code models.StatusCode, at time.Time) error {
	return nil
}
func (m *memStore) RefreshOrder(ctx context.Context, orderID uint64) error { return nil }

// login opens a session directly in the store and returns its token.
func (m *memStore) login(u *models.User) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	tok := uuid.NewString()
	m.sessions[tok] = &models.Session{ID: tok, UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}
	return tok
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()
	st := newMemStore()
	api := New(Services{
		Auth:    auth.New(st, nil, time.Hour, 0),
		Catalog: catalog.New(st),
		Orders:  orders.New(st, nil, 0),
	}, Options{}, nil)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

type result struct {
	Status  int
	Body    envelope
	Raw     json.RawMessage
	Cookies []*http.Cookie
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) result {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw struct {
		envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return result{Status: resp.StatusCode, Body: raw.envelope, Raw: raw.Data, Cookies: resp.Cookies()}
}

func TestAPI_AuthFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	reg := map[string]string{
		"username":         "can_fan",
		"first_name":       "Ana",
		"last_name":        "Lopez",
		"email":            "Ana@Example.com",
		"password":         "Secr3t!pass",
		"confirm_password": "Secr3t!pass",
		"address":          "Av. Siempre Viva 742",
	}
	res := call(t, srv, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, res.Status)
	require.True(t, res.Body.Success)

	res = call(t, srv, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusConflict, res.Status)
	require.Equal(t, "email already registered", res.Body.Error)

	res = call(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, res.Status)
	require.False(t, res.Body.Success)

	res = call(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "Secr3t!pass"})
	require.Equal(t, http.StatusOK, res.Status)
	var login auth.LoginResult
	require.NoError(t, json.Unmarshal(res.Raw, &login))
	require.Equal(t, "/", login.Redirect)
	require.Len(t, res.Cookies, 1)
	require.Equal(t, SessionCookie, res.Cookies[0].Name)
	require.True(t, res.Cookies[0].HttpOnly)

	// cookie and bearer both resolve the session
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/profile", nil)
	req.AddCookie(res.Cookies[0])
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res = call(t, srv, http.MethodGet, "/profile", login.Token, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var prof auth.Profile
	require.NoError(t, json.Unmarshal(res.Raw, &prof))
	require.Equal(t, models.LevelBronze, prof.Stats.Level)

	res = call(t, srv, http.MethodPost, "/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = call(t, srv, http.MethodGet, "/profile", login.Token, nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestAPI_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	res := call(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"username": "x"})
	require.Equal(t, http.StatusBadRequest, res.Status)
	require.NotEmpty(t, res.Body.Error)

	res = call(t, srv, http.MethodPost, "/auth/login", "", map[string]any{"email": "a@b.co", "password": "x", "extra": 1})
	require.Equal(t, http.StatusBadRequest, res.Status)
	require.Equal(t, "invalid JSON payload", res.Body.Error)
}

func TestAPI_Catalog(t *testing.T) {
	srv, st := newTestServer(t)
	st.products[1] = &models.Product{ID: 1, Name: "Xtreme Lime", Price: 1000, Stock: 100}

	res := call(t, srv, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, res.Status)

	res = call(t, srv, http.MethodGet, "/api/products/99", "", nil)
	require.Equal(t, http.StatusNotFound, res.Status)

	res = call(t, srv, http.MethodGet, "/api/products/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, res.Status)

	res = call(t, srv, http.MethodGet, "/shop/products/1", "", nil)
	require.Equal(t, http.StatusOK, res.Status)
	var sp struct {
		Name  string `json:"name"`
		Packs []struct {
			PackSize int   `json:"pack_size"`
			Final    int64 `json:"final"`
		} `json:"packs"`
	}
	require.NoError(t, json.Unmarshal(res.Raw, &sp))
	require.Equal(t, "Xtreme Lime", sp.Name)
	require.Len(t, sp.Packs, 3)
}

func TestAPI_OrdersAccessAndAdminGate(t *testing.T) {
	srv, st := newTestServer(t)
	ana := st.login(&models.User{ID: 1, Email: "ana@example.com", Role: models.RoleCustomer})
	bob := st.login(&models.User{ID: 2, Email: "bob@example.com", Role: models.RoleCustomer})
	staff := st.login(&models.User{ID: 3, Email: "staff@xtree.shop", FirstName: "Staff", Role: models.RoleAdmin})
	st.orders[10] = &models.Order{ID: 10, UserID: 1, Total: 11400}

	res := call(t, srv, http.MethodGet, "/orders/10", ana, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var d models.OrderDetail
	require.NoError(t, json.Unmarshal(res.Raw, &d))
	require.Equal(t, models.StatusPaymentAccepted, d.Order.Status)
	require.Nil(t, d.Customer)

	res = call(t, srv, http.MethodGet, "/orders/10", bob, nil)
	require.Equal(t, http.StatusForbidden, res.Status)

	res = call(t, srv, http.MethodGet, "/orders/11", ana, nil)
	require.Equal(t, http.StatusNotFound, res.Status)

	res = call(t, srv, http.MethodGet, "/admin/orders/10", ana, nil)
	require.Equal(t, http.StatusForbidden, res.Status)

	res = call(t, srv, http.MethodGet, "/admin/orders/10", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)

	res = call(t, srv, http.MethodGet, "/admin/orders/10", staff, nil)
	require.Equal(t, http.StatusOK, res.Status)
	require.NoError(t, json.Unmarshal(res.Raw, &d))
	require.NotNil(t, d.Customer)
	require.Equal(t, "ana@example.com", d.Customer.Email)

	// demoted in the database: the next request is refused
	st.mu.Lock()
	st.users[3].Role = models.RoleCustomer
	st.mu.Unlock()
	res = call(t, srv, http.MethodGet, "/admin/orders/10", staff, nil)
	require.Equal(t, http.StatusForbidden, res.Status)
}

func TestAPI_RequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/cart", "/checkout", "/orders", "/help/tickets"} {
		res := call(t, srv, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, res.Status, path)
		require.False(t, res.Body.Success)
	}
	res := call(t, srv, http.MethodGet, "/cart", "not-a-uuid", nil)
	require.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewValidationError("name", "name is required"), http.StatusBadRequest},
		{models.ErrEmptyCart, http.StatusBadRequest},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{errors.Wrap(models.ErrNotFound, "select order"), http.StatusNotFound},
		{models.NewConflict("email already in use"), http.StatusConflict},
		{models.ErrInsufficientStock, http.StatusConflict},
		{models.ErrTicketClosed, http.StatusConflict},
		{models.ErrRateLimited, http.StatusTooManyRequests},
		{errors.Wrap(models.ErrPaymentDeclined, "card expired"), http.StatusPaymentRequired},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		status, msg := classify(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.NotEmpty(t, msg)
	}
}
