package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
	"github.com/polkiloo/marketplace/internal/server/http/middleware"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func performRequest(t *testing.T, method, path string, handler gin.HandlerFunc, setup func(*gin.Context), body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Handle(method, path, func(c *gin.Context) {
		if setup != nil {
			setup(c)
		}
		handler(c)
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func asBuyer(id int64) func(*gin.Context) {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDContextKey, id)
		c.Set(middleware.RoleContextKey, model.RoleBuyer)
	}
}

func asSeller(id int64) func(*gin.Context) {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDContextKey, id)
		c.Set(middleware.RoleContextKey, model.RoleSeller)
	}
}

func TestCurrentUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := CurrentUserID(c); got != 0 {
		t.Fatalf("expected 0 when not set, got %d", got)
	}
	if got := CurrentUserRole(c); got != "" {
		t.Fatalf("expected empty role when not set, got %q", got)
	}

	c.Set(middleware.UserIDContextKey, int64(42))
	c.Set(middleware.RoleContextKey, model.RoleSeller)
	if got := CurrentUserID(c); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := CurrentUserRole(c); got != model.RoleSeller {
		t.Fatalf("expected seller role, got %q", got)
	}
}

func TestAuthHandlerRegister(t *testing.T) {
	body, _ := json.Marshal(dto.RegisterRequest{Email: "user@example.com", Password: "pass"})
	resp := performRequest(t, http.MethodPost, "/register", NewAuthHandler(testhelpers.AuthFacadeStub{}).Register, nil, body, map[string]string{"Content-Type": "application/json"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if resp.Header().Get("Authorization") == "" {
		t.Fatalf("expected auth header to be set")
	}

	var payload dto.AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Token == "" || payload.User.Email != "user@example.com" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAuthHandlerRegisterPassesCredentials(t *testing.T) {
	email := testhelpers.RandomASCIIString(5, 10) + "@example.com"
	password := testhelpers.RandomASCIIString(16, 32)
	body, _ := json.Marshal(dto.RegisterRequest{Email: email, Password: password, Role: "seller"})
	handler := NewAuthHandler(testhelpers.AuthFacadeStub{RegisterFn: func(ctx context.Context, gotEmail, gotPassword, fullName string, role model.Role) (*model.User, string, error) {
		if gotEmail != email || gotPassword != password || role != model.RoleSeller {
			t.Fatalf("unexpected credentials passed to facade: %q %q %q", gotEmail, gotPassword, role)
		}
		return &model.User{ID: 5, Email: gotEmail, Role: role}, "session-token", nil
	}})
	resp := performRequest(t, http.MethodPost, "/register", handler.Register, nil, body, map[string]string{"Content-Type": "application/json"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if got := resp.Header().Get("Authorization"); got != "Bearer session-token" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

func TestAuthHandlerRegisterErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid credentials", domainErrors.ErrInvalidCredentials, http.StatusBadRequest},
		{"bad role", domainErrors.ErrValidation, http.StatusBadRequest},
		{"duplicate", domainErrors.ErrAlreadyExists, http.StatusConflict},
		{"storage", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewAuthHandler(testhelpers.AuthFacadeStub{RegisterFn: func(context.Context, string, string, string, model.Role) (*model.User, string, error) {
				return nil, "", tc.err
			}})
			body, _ := json.Marshal(dto.RegisterRequest{Email: "user@example.com", Password: "pass"})
			resp := performRequest(t, http.MethodPost, "/register", handler.Register, nil, body, nil)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	body, _ := json.Marshal(dto.LoginRequest{Email: "user@example.com", Password: "pass"})
	resp := performRequest(t, http.MethodPost, "/login", NewAuthHandler(testhelpers.AuthFacadeStub{}).Login, nil, body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	handler := NewAuthHandler(testhelpers.AuthFacadeStub{AuthenticateFn: func(context.Context, string, string) (*model.User, string, error) {
		return nil, "", domainErrors.ErrInvalidCredentials
	}})
	resp = performRequest(t, http.MethodPost, "/login", handler.Login, nil, body, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(testhelpers.AuthFacadeStub{CurrentUserFn: func(_ context.Context, id int64) (*model.User, error) {
		return &model.User{ID: id, Email: "me@example.com", Role: model.RoleBuyer}, nil
	}})
	resp := performRequest(t, http.MethodGet, "/me", handler.Me, asBuyer(7), nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload dto.UserResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.ID != 7 {
		t.Fatalf("unexpected user %+v", payload)
	}
}

func TestProductHandlerList(t *testing.T) {
	handler := NewProductHandler(testhelpers.CatalogFacadeStub{ProductsFn: func(context.Context) ([]model.Product, error) {
		return []model.Product{{ID: 1, Title: "Phone", OriginalPrice: 120000, DiscountPercent: 20, Status: model.ProductStatusActive}}, nil
	}})
	resp := performRequest(t, http.MethodGet, "/products", handler.List, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload []dto.ProductResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(payload) != 1 || payload[0].Price != 96000 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestProductHandlerCreate(t *testing.T) {
	body, _ := json.Marshal(dto.ProductRequest{Title: "Blender", Price: 4500, Stock: 3})
	resp := performRequest(t, http.MethodPost, "/products", NewProductHandler(testhelpers.CatalogFacadeStub{}).Create, asSeller(2), body, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	forbidden := NewProductHandler(testhelpers.CatalogFacadeStub{AddProductFn: func(context.Context, model.Role, *model.Product) (*model.Product, error) {
		return nil, domainErrors.ErrForbidden
	}})
	resp = performRequest(t, http.MethodPost, "/products", forbidden.Create, asBuyer(1), body, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestOrderHandlerCreate(t *testing.T) {
	body, _ := json.Marshal(dto.CreateOrderRequest{Items: []dto.OrderItemRequest{{ProductID: 1, Quantity: 2}}})
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{CreateOrderFn: func(_ context.Context, userID int64, items []model.OrderItem) (*model.Order, error) {
		if userID != 7 || len(items) != 1 || items[0].ProductID != 1 {
			t.Fatalf("unexpected arguments: %d %+v", userID, items)
		}
		return &model.Order{ID: 11, UserID: userID, Total: 192000, Currency: "KES", Status: model.OrderStatusPending}, nil
	}})
	resp := performRequest(t, http.MethodPost, "/orders", handler.Create, asBuyer(7), body, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestOrderHandlerCreateErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domainErrors.ErrValidation, http.StatusBadRequest},
		{"unknown product", domainErrors.ErrNotFound, http.StatusNotFound},
		{"out of stock", domainErrors.ErrOutOfStock, http.StatusConflict},
		{"storage", errors.New("boom"), http.StatusInternalServerError},
	}
	body, _ := json.Marshal(dto.CreateOrderRequest{Items: []dto.OrderItemRequest{{ProductID: 1, Quantity: 1}}})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewOrderHandler(testhelpers.OrderFacadeStub{CreateOrderFn: func(context.Context, int64, []model.OrderItem) (*model.Order, error) {
				return nil, tc.err
			}})
			resp := performRequest(t, http.MethodPost, "/orders", handler.Create, asBuyer(7), body, nil)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestOrderHandlerListEmpty(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{OrdersFn: func(context.Context, int64) ([]model.Order, error) {
		return nil, nil
	}})
	resp := performRequest(t, http.MethodGet, "/orders", handler.List, asBuyer(7), nil, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestOrderHandlerGet(t *testing.T) {
	handler := NewOrderHandler(testhelpers.OrderFacadeStub{})
	resp := performRequest(t, http.MethodGet, "/orders/:id", handler.Get, asBuyer(7), nil, nil)
	// Path parameter is empty in this direct invocation.
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", resp.Code)
	}

	router := gin.New()
	router.GET("/orders/:id", func(c *gin.Context) {
		asBuyer(7)(c)
		handler.Get(c)
	})
	req := httptest.NewRequest(http.MethodGet, "/orders/11", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	forbidden := NewOrderHandler(testhelpers.OrderFacadeStub{OrderFn: func(context.Context, int64, model.Role, int64) (*model.Order, error) {
		return nil, domainErrors.ErrForbidden
	}})
	router = gin.New()
	router.GET("/orders/:id", func(c *gin.Context) {
		asBuyer(7)(c)
		forbidden.Get(c)
	})
	req = httptest.NewRequest(http.MethodGet, "/orders/11", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestPaymentHandlerInitiate(t *testing.T) {
	body, _ := json.Marshal(dto.PaymentRequest{OrderID: 11, Phone: testhelpers.RandomMSISDN(), Amount: 500})
	resp := performRequest(t, http.MethodPost, "/payments", NewPaymentHandler(&testhelpers.PaymentFacadeStub{}, discardLogger()).Initiate, asBuyer(7), body, nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var payload dto.PaymentResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload.Status != string(model.PaymentStatusAwaitingCallback) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPaymentHandlerInitiateErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"bad phone", domainErrors.ErrValidation, http.StatusBadRequest},
		{"foreign order", domainErrors.ErrForbidden, http.StatusForbidden},
		{"unknown order", domainErrors.ErrNotFound, http.StatusNotFound},
		{"already in flight", domainErrors.ErrPaymentInFlight, http.StatusConflict},
		{"oauth failure", domainErrors.ErrCredentialFetch, http.StatusBadGateway},
		{"push failure", domainErrors.ErrPaymentInitiation, http.StatusBadGateway},
		{"storage", errors.New("boom"), http.StatusInternalServerError},
	}
	body, _ := json.Marshal(dto.PaymentRequest{OrderID: 11, Phone: "254712345678", Amount: 500})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewPaymentHandler(&testhelpers.PaymentFacadeStub{InitiateFn: func(context.Context, int64, model.Role, int64, string, int64) (*model.Payment, error) {
				return nil, tc.err
			}}, discardLogger())
			resp := performRequest(t, http.MethodPost, "/payments", handler.Initiate, asBuyer(7), body, nil)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func callbackBody(t *testing.T, resultCode int, items []dto.CallbackItem) []byte {
	t.Helper()
	var envelope dto.STKCallbackEnvelope
	envelope.Body.StkCallback.MerchantRequestID = "merchant-1"
	envelope.Body.StkCallback.CheckoutRequestID = "ws_CO_1"
	envelope.Body.StkCallback.ResultCode = resultCode
	envelope.Body.StkCallback.ResultDesc = "desc"
	envelope.Body.StkCallback.CallbackMetadata.Item = items
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestPaymentHandlerCallbackSuccess(t *testing.T) {
	stub := &testhelpers.PaymentFacadeStub{}
	handler := NewPaymentHandler(stub, discardLogger())

	body := callbackBody(t, 0, []dto.CallbackItem{
		{Name: "Amount", Value: 500.0},
		{Name: "MpesaReceiptNumber", Value: "QGR7TKIXV1"},
		{Name: "PhoneNumber", Value: 254712345678.0},
	})
	resp := performRequest(t, http.MethodPost, "/callback", handler.Callback, nil, body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var ack dto.CallbackAck
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("invalid ack: %v", err)
	}
	if ack.ResultCode != 0 {
		t.Fatalf("unexpected ack %+v", ack)
	}

	if len(stub.Callbacks) != 1 {
		t.Fatalf("expected one callback delivery, got %d", len(stub.Callbacks))
	}
	got := stub.Callbacks[0]
	if got.CheckoutRequestID != "ws_CO_1" || got.Receipt != "QGR7TKIXV1" || got.Phone != "254712345678" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Amount == nil || *got.Amount != 500 {
		t.Fatalf("amount not extracted: %+v", got.Amount)
	}
}

func TestPaymentHandlerCallbackAlwaysAcks(t *testing.T) {
	handler := NewPaymentHandler(&testhelpers.PaymentFacadeStub{CallbackFn: func(context.Context, model.CallbackResult) error {
		return domainErrors.ErrUnknownPayment
	}}, discardLogger())

	body := callbackBody(t, 1032, nil)
	resp := performRequest(t, http.MethodPost, "/callback", handler.Callback, nil, body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unknown reference must still return 200, got %d", resp.Code)
	}

	// Malformed body is acknowledged too: the provider retries anything else.
	resp = performRequest(t, http.MethodPost, "/callback", handler.Callback, nil, []byte("{not json"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("malformed callback must return 200, got %d", resp.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := NewHealthHandler(healthCheckerFunc(func(context.Context) error { return nil }))
	resp := performRequest(t, http.MethodGet, "/health", ok.Status, nil, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	down := NewHealthHandler(healthCheckerFunc(func(context.Context) error { return errors.New("db down") }))
	resp = performRequest(t, http.MethodGet, "/health", down.Status, nil, nil, nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

type healthCheckerFunc func(context.Context) error

func (f healthCheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
