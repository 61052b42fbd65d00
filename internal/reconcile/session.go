package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"restaurant-pos/internal/cart"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/utils"
)

// OrderAPI is the slice of the order store a terminal session talks to. The
// HTTP implementation lives in client.go; tests substitute their own.
type OrderAPI interface {
	CurrentOrder(ctx context.Context, tableID int64) (*models.Order, error)
	AddToCart(ctx context.Context, tableID int64, req models.AddToCartRequest) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, req models.UpdateOrderRequest) (*models.Order, error)
	CompleteAndClear(ctx context.Context, orderID int64) (*models.Order, error)
}

type submissionKind int

const (
	submitCartAdd submissionKind = iota
	submitSync
	submitComplete
)

// submission is one client-issued mutation awaiting server confirmation. The
// request id survives retries so the server can deduplicate a replay whose
// first attempt succeeded but whose response was lost. Sync submissions
// snapshot their payload at enqueue time, so a server response landing between
// two queued edits cannot erase the later one.
type submission struct {
	kind      submissionKind
	requestID string

	// cart-add payload
	productID int64
	quantity  int
	notes     string

	// full-sync payload, captured when the mutation was issued
	sync models.UpdateOrderRequest
}

// Session owns the optimistic view of one table's order. Every mutation
// applies to the view immediately, then joins a FIFO queue drained by a single
// worker, so persistence always happens in the order the client acted.
type Session struct {
	api OrderAPI
	log *logger.Logger

	tableID int64

	mu      sync.Mutex
	view    *models.Order
	pending []*submission
	stalled bool
	closed  bool

	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	onError func(error)

	nextProvisionalID int64
}

// NewSession starts the session worker. onError receives every persistence
// failure; the UI surfaces it with a retry affordance and stays responsive on
// the retained optimistic view.
func NewSession(tableID int64, api OrderAPI, log *logger.Logger, onError func(error)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:     api,
		log:     log,
		tableID: tableID,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		onError: onError,
	}
	go s.worker()
	return s
}

// Load fetches the table's current order into the view. Safe to call with no
// order open; the view simply starts empty.
func (s *Session) Load(ctx context.Context) error {
	order, err := s.api.CurrentOrder(ctx, s.tableID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if len(s.pending) > 0 {
		// Optimistic edits are still in flight; replacing the view would
		// erase them. Take only server-assigned identities.
		if order != nil {
			s.adoptIdentityLocked(order)
		}
		return nil
	}
	s.view = order
	return nil
}

// View returns a copy of the optimistic order view, nil when no order is open.
func (s *Session) View() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil
	}
	return cloneView(s.view)
}

// Pending reports how many mutations await server confirmation.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// AddItem applies the quick-add path optimistically and queues the create
// submission. New lines get a negative provisional id that is never shipped to
// the server; the first persistence always goes through the create endpoint.
func (s *Session) AddItem(product models.Product, quantity int, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}

	if s.view == nil {
		s.view = &models.Order{
			TableID:    &s.tableID,
			Type:       models.OrderDineIn,
			Status:     models.OrderPending,
			GuestCount: 1,
		}
	}

	item, err := cart.AddItem(s.view, product, quantity, notes)
	if err != nil {
		return err
	}
	if item.ID == 0 {
		s.nextProvisionalID--
		item.ID = s.nextProvisionalID
		item.Provisional = true
	}

	s.enqueueLocked(&submission{
		kind:      submitCartAdd,
		requestID: utils.GenerateRequestID(),
		productID: product.ID,
		quantity:  quantity,
		notes:     notes,
	})
	return nil
}

func (s *Session) IncrementItem(itemID int64) error {
	return s.mutate(func(order *models.Order) error {
		return cart.IncrementItem(order, itemID)
	})
}

func (s *Session) DecrementItem(itemID int64) error {
	return s.mutate(func(order *models.Order) error {
		return cart.DecrementItem(order, itemID)
	})
}

func (s *Session) RemoveItem(itemID int64) error {
	return s.mutate(func(order *models.Order) error {
		return cart.RemoveItem(order, itemID)
	})
}

func (s *Session) EditItem(itemID int64, patch cart.ItemPatch) error {
	return s.mutate(func(order *models.Order) error {
		return cart.EditItem(order, itemID, patch)
	})
}

// Complete queues the complete-and-clear step behind every outstanding edit.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.view == nil {
		return cart.ErrItemNotFound
	}
	s.enqueueLocked(&submission{
		kind:      submitComplete,
		requestID: utils.GenerateRequestID(),
	})
	return nil
}

// Retry resumes persistence after a reported failure, starting from the first
// unconfirmed submission. The optimistic view is untouched: it was never
// rolled back.
func (s *Session) Retry() {
	s.mu.Lock()
	s.stalled = false
	s.mu.Unlock()
	s.signal()
}

// Close cancels any in-flight persistence call and stops the worker. A result
// racing with Close is discarded, never applied to a view that no longer
// exists.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

func (s *Session) mutate(apply func(*models.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.view == nil {
		return cart.ErrItemNotFound
	}
	if err := apply(s.view); err != nil {
		return err
	}
	s.enqueueLocked(&submission{
		kind:      submitSync,
		requestID: utils.GenerateRequestID(),
		sync: models.UpdateOrderRequest{
			GuestCount:          s.view.GuestCount,
			SpecialInstructions: s.view.SpecialInstructions,
			PaymentMethod:       s.view.PaymentMethod,
			PaymentReference:    s.view.PaymentReference,
			Items:               sanitizeItems(s.view.Items),
		},
	})
	return nil
}

func (s *Session) enqueueLocked(sub *submission) {
	s.pending = append(s.pending, sub)
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) worker() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.stalled || len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			sub := s.pending[0]
			s.mu.Unlock()

			order, err := s.submit(sub)
			if s.ctx.Err() != nil {
				// Session navigated away mid-call; drop the result.
				return
			}

			s.mu.Lock()
			if err != nil {
				// Keep the optimistic view and hold the queue so a later
				// mutation cannot overtake this one; surface for retry.
				s.stalled = true
				s.mu.Unlock()
				s.report(err)
				break
			}
			if order != nil {
				if len(s.pending) > 1 {
					// Later optimistic edits are still queued; adopting the
					// server order wholesale would erase them. Take only the
					// identities it assigned.
					s.adoptIdentityLocked(order)
				} else {
					s.view = order
				}
			}
			s.pending = s.pending[1:]
			s.mu.Unlock()
		}
	}
}

func (s *Session) submit(sub *submission) (*models.Order, error) {
	switch sub.kind {
	case submitCartAdd:
		order, err := s.api.AddToCart(s.ctx, s.tableID, models.AddToCartRequest{
			ProductID: sub.productID,
			Quantity:  sub.quantity,
			Notes:     sub.notes,
			RequestID: sub.requestID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		return order, nil

	case submitSync:
		s.mu.Lock()
		if s.view == nil || s.view.ID == 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: order not yet persisted", ErrPersistenceUnavailable)
		}
		orderID := s.view.ID
		s.mu.Unlock()

		order, err := s.api.UpdateOrder(s.ctx, orderID, sub.sync)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		return order, nil

	case submitComplete:
		s.mu.Lock()
		if s.view == nil || s.view.ID == 0 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: order not yet persisted", ErrPersistenceUnavailable)
		}
		orderID := s.view.ID
		s.mu.Unlock()

		order, err := s.api.CompleteAndClear(s.ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		return order, nil
	}
	return nil, nil
}

func (s *Session) report(err error) {
	if s.log != nil {
		s.log.Warn("RECONCILE", fmt.Sprintf("Persistence not confirmed for table %d: %v", s.tableID, err))
	}
	if s.onError != nil {
		s.onError(err)
	}
}

// adoptIdentityLocked copies server-assigned ids into the optimistic view
// without touching quantities or notes. Provisional lines are matched to the
// server's by product, first unclaimed wins.
func (s *Session) adoptIdentityLocked(order *models.Order) {
	if s.view == nil {
		s.view = order
		return
	}
	s.view.ID = order.ID
	s.view.OrderNumber = order.OrderNumber
	s.view.OrderDate = order.OrderDate

	claimed := make(map[int64]bool)
	for i := range s.view.Items {
		local := &s.view.Items[i]
		if !local.Provisional && local.ID > 0 {
			continue
		}
		for j := range order.Items {
			srv := &order.Items[j]
			if claimed[srv.ID] || srv.ProductID != local.ProductID {
				continue
			}
			claimed[srv.ID] = true
			local.ID = srv.ID
			local.OrderID = srv.OrderID
			local.Provisional = false
			break
		}
	}
}

// sanitizeItems strips provisional ids before a full-order update: the server
// has never seen those ids, so the lines go over as creates (id 0), not
// updates of ids the store never issued.
func sanitizeItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Provisional || out[i].ID < 0 {
			out[i].ID = 0
		}
	}
	return out
}

func cloneView(o *models.Order) *models.Order {
	cp := *o
	if o.TableID != nil {
		id := *o.TableID
		cp.TableID = &id
	}
	cp.Items = make([]models.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
