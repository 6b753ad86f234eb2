package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

type ledgerStore struct {
	db *sql.DB
}

// NewLedgerStore creates the reservation/contribution store. Item locking is
// a row lock (SELECT ... FOR UPDATE) held for the whole transaction.
func NewLedgerStore(db *sql.DB) repository.LedgerStore {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) WithItemLock(ctx context.Context, itemID int64, fn func(tx repository.LedgerTx, item *models.Item) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + itemColumns + ` FROM wishlist_items WHERE id = $1 FOR UPDATE`
	item, err := scanItem(tx.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock wishlist item: %w", err)
		}
		item = nil
	}

	if err = fn(&ledgerTx{tx: tx}, item); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *ledgerStore) ListReservations(ctx context.Context, itemIDs []int64) ([]*models.Reservation, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, item_id, reserver_name, message, is_group, created_at
		FROM reservations
		WHERE item_id = ANY($1)
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var (
		reservations []*models.Reservation
		ids          []int64
		byID         = make(map[int64]*models.Reservation)
	)
	for rows.Next() {
		res := &models.Reservation{}
		if err := rows.Scan(&res.ID, &res.ItemID, &res.ReserverName, &res.Message, &res.IsGroup, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, res)
		ids = append(ids, res.ID)
		byID[res.ID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return reservations, nil
	}

	contribQuery := `
		SELECT id, reservation_id, amount_cents, contributor_name, is_anonymous, created_at
		FROM contributions
		WHERE reservation_id = ANY($1)
		ORDER BY created_at ASC, id ASC`

	crows, err := s.db.QueryContext(ctx, contribQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c models.Contribution
		if err := crows.Scan(&c.ID, &c.ReservationID, &c.AmountCents, &c.ContributorName, &c.IsAnonymous, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		if res, ok := byID[c.ReservationID]; ok {
			res.Contributions = append(res.Contributions, c)
		}
	}

	return reservations, crows.Err()
}

// ledgerTx runs the ledger queries inside the item-locking transaction.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) CountReservations(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE item_id = $1`, itemID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return n, nil
}

func (t *ledgerTx) CollectedAmount(ctx context.Context, itemID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(c.amount_cents), 0)
		FROM contributions c
		JOIN reservations r ON r.id = c.reservation_id
		WHERE r.item_id = $1`

	var total int64
	if err := t.tx.QueryRowContext(ctx, query, itemID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum contributions: %w", err)
	}
	return total, nil
}

func (t *ledgerTx) GroupReservation(ctx context.Context, itemID int64) (*models.Reservation, error) {
	query := `
		SELECT id, item_id, reserver_name, message, is_group, created_at
		FROM reservations
		WHERE item_id = $1 AND is_group
		LIMIT 1`

	res := &models.Reservation{}
	err := t.tx.QueryRowContext(ctx, query, itemID).Scan(
		&res.ID, &res.ItemID, &res.ReserverName, &res.Message, &res.IsGroup, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group reservation: %w", err)
	}
	return res, nil
}

func (t *ledgerTx) CreateReservation(ctx context.Context, res *models.Reservation) (*models.Reservation, error) {
	query := `
		INSERT INTO reservations (item_id, reserver_name, message, is_group, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	res.CreatedAt = time.Now()

	err := t.tx.QueryRowContext(ctx, query,
		res.ItemID,
		res.ReserverName,
		res.Message,
		res.IsGroup,
		res.CreatedAt,
	).Scan(&res.ID, &res.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("group reservation for item %d: %w", res.ItemID, repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return res, nil
}

func (t *ledgerTx) CreateContribution(ctx context.Context, c *models.Contribution) (*models.Contribution, error) {
	query := `
		INSERT INTO contributions (reservation_id, amount_cents, contributor_name, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	c.CreatedAt = time.Now()

	err := t.tx.QueryRowContext(ctx, query,
		c.ReservationID,
		c.AmountCents,
		c.ContributorName,
		c.IsAnonymous,
		c.CreatedAt,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}

	return c, nil
}

func (t *ledgerTx) UpdateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	query := `
		UPDATE wishlist_items
		SET title = $2, url = $3, image_url = $4, price_cents = $5, allow_group_funding = $6,
			target_amount_cents = $7, min_contribution_cents = $8, source_unavailable = $9
		WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query,
		item.ID,
		item.Title,
		item.URL,
		item.ImageURL,
		item.PriceCents,
		item.AllowGroupFunding,
		item.TargetAmountCents,
		item.MinContributionCents,
		item.SourceUnavailable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update wishlist item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("wishlist item %d: %w", item.ID, repository.ErrNotFound)
	}

	return item, nil
}
