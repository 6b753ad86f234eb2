package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

type ledgerStore struct{ s *Store }

// lockEntry is a per-item mutex shared by the callers currently holding or
// waiting for it. The entry is dropped once refs reaches zero, so the map
// only holds items with ledger work in flight.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (s *Store) lockItem(itemID int64) *lockEntry {
	s.lockMu.Lock()
	l, ok := s.itemLocks[itemID]
	if !ok {
		l = &lockEntry{}
		s.itemLocks[itemID] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store) unlockItem(itemID int64, l *lockEntry) {
	l.mu.Unlock()

	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if l.refs--; l.refs == 0 {
		delete(s.itemLocks, itemID)
	}
}

// WithItemLock serializes ledger work per item. Writes are staged on the tx
// and only become visible when fn succeeds.
func (l *ledgerStore) WithItemLock(ctx context.Context, itemID int64, fn func(tx repository.LedgerTx, item *models.Item) error) error {
	lock := l.s.lockItem(itemID)
	defer l.s.unlockItem(itemID, lock)

	if err := ctx.Err(); err != nil {
		return err
	}

	l.s.mu.RLock()
	var item *models.Item
	if stored, ok := l.s.items[itemID]; ok {
		item = copyItem(stored)
	}
	l.s.mu.RUnlock()

	tx := &ledgerTx{s: l.s}
	if err := fn(tx, item); err != nil {
		return err
	}
	return tx.commit(itemID)
}

func (l *ledgerStore) ListReservations(_ context.Context, itemIDs []int64) ([]*models.Reservation, error) {
	wanted := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var out []*models.Reservation
	for _, res := range l.s.reservations {
		if !wanted[res.ItemID] {
			continue
		}
		c := *res
		c.Contributions = nil
		for _, contrib := range l.s.contributions {
			if contrib.ReservationID == res.ID {
				c.Contributions = append(c.Contributions, *contrib)
			}
		}
		sort.Slice(c.Contributions, func(i, j int) bool { return c.Contributions[i].ID < c.Contributions[j].ID })
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ledgerTx reads committed state merged with its own staged writes.
type ledgerTx struct {
	s             *Store
	reservations  []*models.Reservation
	contributions []*models.Contribution
	item          *models.Item
}

func (t *ledgerTx) CountReservations(_ context.Context, itemID int64) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	n := 0
	for _, res := range t.s.reservations {
		if res.ItemID == itemID {
			n++
		}
	}
	for _, res := range t.reservations {
		if res.ItemID == itemID {
			n++
		}
	}
	return n, nil
}

func (t *ledgerTx) reservationItem(resID int64) (int64, bool) {
	if res, ok := t.s.reservations[resID]; ok {
		return res.ItemID, true
	}
	for _, res := range t.reservations {
		if res.ID == resID {
			return res.ItemID, true
		}
	}
	return 0, false
}

func (t *ledgerTx) CollectedAmount(_ context.Context, itemID int64) (int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	var total int64
	for _, c := range t.s.contributions {
		if id, ok := t.reservationItem(c.ReservationID); ok && id == itemID {
			total += c.AmountCents
		}
	}
	for _, c := range t.contributions {
		if id, ok := t.reservationItem(c.ReservationID); ok && id == itemID {
			total += c.AmountCents
		}
	}
	return total, nil
}

func (t *ledgerTx) groupReservationLocked(itemID int64) *models.Reservation {
	for _, res := range t.s.reservations {
		if res.ItemID == itemID && res.IsGroup {
			c := *res
			return &c
		}
	}
	for _, res := range t.reservations {
		if res.ItemID == itemID && res.IsGroup {
			c := *res
			return &c
		}
	}
	return nil
}

func (t *ledgerTx) GroupReservation(_ context.Context, itemID int64) (*models.Reservation, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.groupReservationLocked(itemID), nil
}

func (t *ledgerTx) CreateReservation(_ context.Context, res *models.Reservation) (*models.Reservation, error) {
	if res.IsGroup {
		t.s.mu.RLock()
		existing := t.groupReservationLocked(res.ItemID)
		t.s.mu.RUnlock()
		if existing != nil {
			return nil, fmt.Errorf("group reservation for item %d: %w", res.ItemID, repository.ErrDuplicate)
		}
	}

	res.ID = t.s.nextID()
	res.CreatedAt = time.Now()
	c := *res
	c.Contributions = nil
	t.reservations = append(t.reservations, &c)
	return res, nil
}

func (t *ledgerTx) CreateContribution(_ context.Context, contrib *models.Contribution) (*models.Contribution, error) {
	t.s.mu.RLock()
	_, ok := t.reservationItem(contrib.ReservationID)
	t.s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", contrib.ReservationID, repository.ErrNotFound)
	}

	contrib.ID = t.s.nextID()
	contrib.CreatedAt = time.Now()
	c := *contrib
	t.contributions = append(t.contributions, &c)
	return contrib, nil
}

func (t *ledgerTx) UpdateItem(_ context.Context, item *models.Item) (*models.Item, error) {
	t.item = copyItem(item)
	return item, nil
}

func (t *ledgerTx) commit(itemID int64) error {
	if len(t.reservations) == 0 && len(t.contributions) == 0 && t.item == nil {
		return nil
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	stored, ok := t.s.items[itemID]
	if !ok {
		return fmt.Errorf("wishlist item %d: %w", itemID, repository.ErrNotFound)
	}
	if t.item != nil {
		t.item.WishlistID = stored.WishlistID
		t.item.CreatedAt = stored.CreatedAt
		t.s.items[itemID] = t.item
	}
	for _, res := range t.reservations {
		t.s.reservations[res.ID] = res
	}
	for _, c := range t.contributions {
		t.s.contributions[c.ID] = c
	}
	return nil
}
