package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/testutil"
	"github.com/taskhive/backend/pkg/response"
)

// fakeRazorpay serves POST /v1/orders and records the last request body.
func fakeRazorpay(t *testing.T, keyID, keySecret string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var last map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != keyID || pass != keySecret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
			return
		}
		last = map[string]interface{}{}
		_ = json.NewDecoder(r.Body).Decode(&last)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_test123",
			"amount":   last["amount"],
			"currency": last["currency"],
			"receipt":  last["receipt"],
			"status":   "created",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func paymentConfig(baseURL string) config.PaymentConfig {
	cfg := config.DefaultConfig().Payment
	cfg.KeyID = "rzp_test_key"
	cfg.KeySecret = "rzp_test_secret"
	cfg.BaseURL = baseURL
	return cfg
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	srv, last := fakeRazorpay(t, "rzp_test_key", "rzp_test_secret")
	gw := NewPaymentGateway(paymentConfig(srv.URL))

	order, err := gw.CreateOrder(context.Background(), 49900, "INR", "rcpt_1", map[string]string{"plan": "PRO"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_test123" {
		t.Errorf("expected order id order_test123, got %q", order.ID)
	}
	if (*last)["amount"] != float64(49900) || (*last)["currency"] != "INR" {
		t.Errorf("unexpected request body: %v", *last)
	}
}

func TestRazorpayGateway_AuthFailure(t *testing.T) {
	srv, _ := fakeRazorpay(t, "rzp_test_key", "other_secret")
	gw := NewPaymentGateway(paymentConfig(srv.URL))

	_, err := gw.CreateOrder(context.Background(), 100, "INR", "r", nil)
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
}

func TestRazorpayGateway_VerifySignature(t *testing.T) {
	gw := NewPaymentGateway(paymentConfig("http://unused"))
	sig := SignPayment("rzp_test_secret", "order_1", "pay_1")

	tests := []struct {
		name               string
		order, payment, sg string
		want               bool
	}{
		{"valid", "order_1", "pay_1", sig, true},
		{"other payment", "order_1", "pay_2", sig, false},
		{"not hex", "order_1", "pay_1", "zz", false},
		{"empty", "order_1", "pay_1", "", false},
	}
	for _, tt := range tests {
		if got := gw.VerifySignature(tt.order, tt.payment, tt.sg); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestDisabledGateway(t *testing.T) {
	gw := NewPaymentGateway(config.DefaultConfig().Payment)
	if gw.Enabled() {
		t.Fatal("gateway without keys must be disabled")
	}
	_, err := gw.CreateOrder(context.Background(), 1, "INR", "r", nil)
	if response.KindOf(err) != response.KindPaymentsDisabled {
		t.Errorf("expected PaymentsDisabled, got %v", err)
	}
}

func newSubscriptionService(t *testing.T, f *fixture, gw PaymentGateway, payment config.PaymentConfig) *SubscriptionService {
	t.Helper()
	svc := NewSubscriptionService(f.db, gw, payment, config.DefaultConfig().Subscription)
	svc.now = testutil.FixedClock(t0)
	return svc
}

func TestSubscriptionService_OrderAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv, _ := fakeRazorpay(t, "rzp_test_key", "rzp_test_secret")
	payment := paymentConfig(srv.URL)
	svc := newSubscriptionService(t, f, NewPaymentGateway(payment), payment)

	owner := testutil.CreateUser(t, f.db, "owner@example.com")
	ws := testutil.CreateWorkspace(t, f.db, owner, "Paying", t0.AddDate(0, 0, 30))
	access := accessFor(t, f.db, ws, owner)

	if _, err := svc.CreateOrder(ctx, access, &CreateOrderRequest{Plan: "GOLD"}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected ValidationFailed for unknown plan, got %v", err)
	}

	order, err := svc.CreateOrder(ctx, access, &CreateOrderRequest{Plan: "pro"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Amount != 49900 || order.Plan != "PRO" || order.KeyID != "rzp_test_key" {
		t.Errorf("unexpected order: %+v", order)
	}

	_, err = svc.VerifyPayment(ctx, access, &VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "00"})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}

	sig := SignPayment("rzp_test_secret", order.OrderID, "pay_1")
	updated, err := svc.VerifyPayment(ctx, access, &VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if updated.SubscriptionStatus != models.SubscriptionActive {
		t.Errorf("expected active, got %q", updated.SubscriptionStatus)
	}
	if updated.SubscriptionPlan != "PRO" || updated.MaxMembers != 25 {
		t.Errorf("expected PRO with 25 members, got %s/%d", updated.SubscriptionPlan, updated.MaxMembers)
	}
	if updated.SubscriptionEndsAt == nil || !updated.SubscriptionEndsAt.Equal(t0.AddDate(0, 0, 30)) {
		t.Errorf("expected period end at %v, got %v", t0.AddDate(0, 0, 30), updated.SubscriptionEndsAt)
	}

	_, err = svc.VerifyPayment(ctx, access, &VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: sig})
	if response.KindOf(err) != response.KindConflict {
		t.Errorf("expected Conflict for second verification, got %v", err)
	}

	_, err = svc.VerifyPayment(ctx, access, &VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "00"})
	if response.KindOf(err) != response.KindConflict {
		t.Errorf("expected Conflict for a bad signature on a paid order, got %v", err)
	}
	var stored models.SubscriptionPayment
	if err := f.db.First(&stored, "order_id = ?", order.OrderID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.PaymentPaid {
		t.Errorf("expected paid order to stay paid, got %q", stored.Status)
	}
}

func TestReceiptTag(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"3f2b9c1e-8d7a-4f6b-9e0c-1a2b3c4d5e6f", "3f2b9c1e"},
		{"ab-cd", "abcd"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := receiptTag(tt.id); got != tt.expected {
			t.Errorf("receiptTag(%q): expected %q, got %q", tt.id, tt.expected, got)
		}
	}
}

func TestSubscriptionService_VerifyOtherWorkspaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	srv, _ := fakeRazorpay(t, "rzp_test_key", "rzp_test_secret")
	payment := paymentConfig(srv.URL)
	svc := newSubscriptionService(t, f, NewPaymentGateway(payment), payment)

	a := testutil.CreateUser(t, f.db, "a@example.com")
	b := testutil.CreateUser(t, f.db, "b@example.com")
	wsA := testutil.CreateWorkspace(t, f.db, a, "Alpha", t0.AddDate(0, 0, 30))
	wsB := testutil.CreateWorkspace(t, f.db, b, "Beta", t0.AddDate(0, 0, 30))

	order, err := svc.CreateOrder(ctx, accessFor(t, f.db, wsA, a), &CreateOrderRequest{Plan: "BUSINESS"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	sig := SignPayment("rzp_test_secret", order.OrderID, "pay_9")
	_, err = svc.VerifyPayment(ctx, accessFor(t, f.db, wsB, b), &VerifyPaymentRequest{OrderID: order.OrderID, PaymentID: "pay_9", Signature: sig})
	if response.KindOf(err) != response.KindNotFound {
		t.Errorf("expected NotFound for another workspace's order, got %v", err)
	}
}

func TestSubscriptionService_PaymentsDisabled(t *testing.T) {
	f := newFixture(t)
	payment := config.DefaultConfig().Payment
	svc := newSubscriptionService(t, f, NewPaymentGateway(payment), payment)
	owner := testutil.CreateUser(t, f.db, "owner@example.com")
	ws := testutil.CreateWorkspace(t, f.db, owner, "Free", t0.AddDate(0, 0, 30))

	_, err := svc.CreateOrder(context.Background(), accessFor(t, f.db, ws, owner), &CreateOrderRequest{Plan: "PRO"})
	if !errors.Is(err, ErrPaymentsDisabled) {
		t.Errorf("expected ErrPaymentsDisabled, got %v", err)
	}
}

func TestSubscriptionService_Cancel(t *testing.T) {
	f := newFixture(t)
	payment := config.DefaultConfig().Payment
	svc := newSubscriptionService(t, f, NewPaymentGateway(payment), payment)
	owner := testutil.CreateUser(t, f.db, "owner@example.com")
	ws := testutil.CreateWorkspace(t, f.db, owner, "Leaving", t0.AddDate(0, 0, 30))
	access := accessFor(t, f.db, ws, owner)

	cancelled, err := svc.Cancel(context.Background(), access)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.SubscriptionStatus != models.SubscriptionCancelled {
		t.Errorf("expected cancelled, got %q", cancelled.SubscriptionStatus)
	}

	if _, err := svc.Cancel(context.Background(), access); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected ValidationFailed cancelling twice, got %v", err)
	}
}

func TestSubscriptionService_ExpireTrials(t *testing.T) {
	f := newFixture(t)
	payment := config.DefaultConfig().Payment
	svc := newSubscriptionService(t, f, NewPaymentGateway(payment), payment)
	owner := testutil.CreateUser(t, f.db, "owner@example.com")

	lapsed := testutil.CreateWorkspace(t, f.db, owner, "Lapsed", t0.Add(-1))
	running := testutil.CreateWorkspace(t, f.db, owner, "Running", t0.AddDate(0, 0, 1))
	paid := testutil.CreateWorkspace(t, f.db, owner, "Paid", t0.AddDate(0, 0, -40))
	f.db.Model(paid).Updates(map[string]interface{}{
		"subscription_status":  models.SubscriptionActive,
		"subscription_ends_at": t0.AddDate(0, 0, -1),
	})

	n, err := svc.ExpireTrials(context.Background())
	if err != nil {
		t.Fatalf("ExpireTrials() error = %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 workspaces expired, got %d", n)
	}

	want := map[string]models.SubscriptionStatus{
		lapsed.ID:  models.SubscriptionInactive,
		running.ID: models.SubscriptionTrial,
		paid.ID:    models.SubscriptionInactive,
	}
	for id, status := range want {
		var ws models.Workspace
		f.db.First(&ws, "id = ?", id)
		if ws.SubscriptionStatus != status {
			t.Errorf("%s: expected %q, got %q", ws.Name, status, ws.SubscriptionStatus)
		}
	}
}

func TestSubscriptionService_Plans(t *testing.T) {
	payment := config.DefaultConfig().Payment
	svc := NewSubscriptionService(nil, NewPaymentGateway(payment), payment, config.DefaultConfig().Subscription)

	plans := svc.Plans()
	if len(plans) != 2 || plans[0].Name != "PRO" || plans[1].Name != "BUSINESS" {
		t.Errorf("expected PRO then BUSINESS, got %+v", plans)
	}
}
