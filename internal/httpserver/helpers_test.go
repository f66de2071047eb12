package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	cartsvc "storefront/internal/service/cart"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	reviewsvc "storefront/internal/service/review"
	"storefront/internal/service/servicetest"
	usersvc "storefront/internal/service/user"
)

const (
	aliceToken = "tok-alice"
	bobToken   = "tok-bob"
	adminToken = "tok-admin"
	webhookSig = "whsec_test"
)

type stubUserSvc struct {
	identities map[string]domain.Identity
	signupErr  error
	loginErr   error
}

func newStubUserSvc() *stubUserSvc {
	return &stubUserSvc{identities: map[string]domain.Identity{
		aliceToken: {UserID: "alice", Role: domain.RoleCustomer},
		bobToken:   {UserID: "bob", Role: domain.RoleCustomer},
		adminToken: {UserID: "root", Role: domain.RoleAdmin},
	}}
}

func (s *stubUserSvc) Signup(_ context.Context, in usersvc.SignupInput) (*domain.User, error) {
	if s.signupErr != nil {
		return nil, s.signupErr
	}
	return &domain.User{ID: "new-user", Email: in.Email, PasswordHash: "secret-hash", Role: domain.RoleCustomer}, nil
}

func (s *stubUserSvc) Login(_ context.Context, email, _ string) (*usersvc.Session, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &usersvc.Session{User: &domain.User{ID: "alice", Email: email}, Token: aliceToken}, nil
}

func (s *stubUserSvc) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	id, ok := s.identities[token]
	if !ok {
		return domain.Identity{}, domain.Unauthorized("stub.Authenticate", "invalid or expired token")
	}
	return id, nil
}

func (s *stubUserSvc) Logout(_ context.Context, token string) error {
	delete(s.identities, token)
	return nil
}

func (s *stubUserSvc) Get(_ context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id, Email: id + "@example.com", PasswordHash: "secret-hash", Role: domain.RoleCustomer}, nil
}

func (s *stubUserSvc) TokenTTLSeconds() int { return 3600 }

type stubCategorySvc struct{}

func (stubCategorySvc) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: "c1", Key: "lamps", Name: "Lamps"}}, nil
}

func (stubCategorySvc) Create(_ context.Context, c domain.Category) (*domain.Category, error) {
	c.ID = "c2"
	return &c, nil
}

type memoryReviews struct {
	byID map[string]domain.Review
}

func (r *memoryReviews) Create(_ context.Context, in domain.Review) (*domain.Review, error) {
	r.byID[in.ID] = in
	return &in, nil
}

func (r *memoryReviews) GetByID(_ context.Context, id string) (*domain.Review, error) {
	v, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r *memoryReviews) ListByProduct(_ context.Context, productID string) ([]domain.Review, error) {
	out := []domain.Review{}
	for _, v := range r.byID {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryReviews) Delete(_ context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

type testEnv struct {
	store   *servicetest.Store
	gateway *payment.MockGateway
	users   *stubUserSvc
	metrics *metrics.Registry
	logs    *test.Hook
	deps    Deps
	router  *gin.Engine
}

func logDiscard() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := servicetest.NewStore()
	gw := payment.NewMockGateway(webhookSig)
	reg := metrics.New()
	logger, hook := logDiscard()
	users := newStubUserSvc()

	carts := cartsvc.New(store, store.Carts(), store.Products(), cartsvc.WithMetrics(reg.Business), cartsvc.WithLogger(logger))
	orders := ordersvc.New(ordersvc.Deps{
		Tx:        store,
		Orders:    store.Orders(),
		Carts:     store.Carts(),
		Clearer:   carts,
		Products:  store.Products(),
		Addresses: store.Addresses(),
		Outbox:    store.Outbox(),
		Gateway:   gw,
		Metrics:   reg.Business,
		Logger:    logger,
	})

	deps := Deps{
		UserSvc:     users,
		ProductSvc:  productsvc.New(store, store.Products(), nil, reg.Business, logger),
		CategorySvc: stubCategorySvc{},
		ReviewSvc:   reviewsvc.New(&memoryReviews{byID: map[string]domain.Review{}}, store.Products()),
		CartSvc:     carts,
		OrderSvc:    orders,
		Payments:    gw,
		Metrics:     reg,
	}
	router, err := buildRouter(logger, nil, deps)
	require.NoError(t, err)

	return &testEnv{store: store, gateway: gw, users: users, metrics: reg, logs: hook, deps: deps, router: router}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body=%s", rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) domain.Kind {
	t.Helper()
	return decode[errorBody](t, rec).Error.Code
}
