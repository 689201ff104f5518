package productsvc

import (
	"context"

	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// Reconciler reacts to identity events that affect carts.
type Reconciler struct {
	store Store
	logg  *logger.Logger
}

func NewReconciler(store Store, logg *logger.Logger) *Reconciler {
	return &Reconciler{store: store, logg: logg}
}

// HandleUserBlocked empties the blocked user's cart so nothing dangles
// into a checkout they can no longer complete.
func (r *Reconciler) HandleUserBlocked(ctx context.Context, payload *events.UserBlocked) error {
	if err := r.store.ClearCartItems(ctx, payload.UserID); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithUserID(ctx, payload.UserID), "cart cleared for blocked user")
	return nil
}

// HandleUserUnblocked needs no local change. The cart was emptied on
// block and the user simply starts fresh.
func (r *Reconciler) HandleUserUnblocked(ctx context.Context, payload *events.UserUnblocked) error {
	r.logg.Info(r.logg.WithUserID(ctx, payload.UserID), "user unblocked")
	return nil
}
