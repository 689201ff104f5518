package productsvc

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/threadline/threadline-backend/pkg/events"
)

func TestHandleUserBlockedClearsCart(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService()
	product := seedProduct(store, "Tee", "10.00", 50)

	if _, err := svc.AddToCart(context.Background(), 1, AddToCartInput{ProductID: product.ID, Quantity: 2}); err != nil {
		t.Fatalf("add to cart: %v", err)
	}

	rec := NewReconciler(store, testLogger())
	if err := rec.HandleUserBlocked(context.Background(), &events.UserBlocked{UserID: 1}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	cart, err := svc.GetCart(context.Background(), 1)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}
	if !cart.Total.Equal(decimal.Zero) {
		t.Fatalf("expected zero total, got %s", cart.Total)
	}
}

func TestHandleUserBlockedWithoutCart(t *testing.T) {
	t.Parallel()

	_, store, _ := newTestService()
	rec := NewReconciler(store, testLogger())

	if err := rec.HandleUserBlocked(context.Background(), &events.UserBlocked{UserID: 9}); err != nil {
		t.Fatalf("blocking a user without a cart must be a no-op, got %v", err)
	}
}

func TestHandleUserUnblocked(t *testing.T) {
	t.Parallel()

	_, store, _ := newTestService()
	rec := NewReconciler(store, testLogger())

	if err := rec.HandleUserUnblocked(context.Background(), &events.UserUnblocked{UserID: 9}); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
