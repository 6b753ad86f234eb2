package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/repository"
)

var itemRowColumns = []string{
	"id", "wishlist_id", "title", "url", "image_url", "price_cents", "allow_group_funding",
	"target_amount_cents", "min_contribution_cents", "source_unavailable", "created_at",
}

func lockedItemRows(id int64) *sqlmock.Rows {
	return sqlmock.NewRows(itemRowColumns).
		AddRow(id, int64(4), "Lego", nil, nil, int64(1000), true, int64(1000), int64(100), false, time.Now())
}

const lockQuery = `FROM wishlist_items WHERE id = $1 FOR UPDATE`

func TestWithItemLockCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reservations`)).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO reservations`)).
		WithArgs(int64(7), "Alice", nil, false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))
	mock.ExpectCommit()

	store := NewLedgerStore(db)
	var created *models.Reservation
	err = store.WithItemLock(context.Background(), 7, func(tx repository.LedgerTx, item *models.Item) error {
		require.NotNil(t, item)
		require.Equal(t, int64(4), item.WishlistID)

		n, err := tx.CountReservations(context.Background(), item.ID)
		if err != nil {
			return err
		}
		require.Zero(t, n)

		created, err = tx.CreateReservation(context.Background(), &models.Reservation{ItemID: item.ID, ReserverName: "Alice"})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), created.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithItemLockRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectRollback()

	rejected := errors.New("rejected")
	err = NewLedgerStore(db).WithItemLock(context.Background(), 7, func(repository.LedgerTx, *models.Item) error {
		return rejected
	})
	require.ErrorIs(t, err, rejected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithItemLockPassesNilForMissingItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(99)).WillReturnRows(sqlmock.NewRows(itemRowColumns))
	mock.ExpectRollback()

	err = NewLedgerStore(db).WithItemLock(context.Background(), 99, func(_ repository.LedgerTx, item *models.Item) error {
		require.Nil(t, item)
		return repository.ErrNotFound
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGroupReservationMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO reservations`)).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err = NewLedgerStore(db).WithItemLock(context.Background(), 7, func(tx repository.LedgerTx, item *models.Item) error {
		_, err := tx.CreateReservation(context.Background(), &models.Reservation{ItemID: item.ID, ReserverName: "Group", IsGroup: true})
		return err
	})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectedAmountAndGroupReservation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectQuery(regexp.QuoteMeta(`COALESCE(SUM(c.amount_cents), 0)`)).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(400)))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE item_id = $1 AND is_group`)).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "reserver_name", "message", "is_group", "created_at"}).
			AddRow(int64(3), int64(7), "Group", nil, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO contributions`)).
		WithArgs(int64(3), int64(250), "Bob", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), now))
	mock.ExpectCommit()

	err = NewLedgerStore(db).WithItemLock(context.Background(), 7, func(tx repository.LedgerTx, item *models.Item) error {
		ctx := context.Background()
		collected, err := tx.CollectedAmount(ctx, item.ID)
		require.NoError(t, err)
		require.Equal(t, int64(400), collected)

		group, err := tx.GroupReservation(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, group)

		c, err := tx.CreateContribution(ctx, &models.Contribution{ReservationID: group.ID, AmountCents: 250, ContributorName: "Bob"})
		require.NoError(t, err)
		require.Equal(t, int64(21), c.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReservationsAttachesContributions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM reservations`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "reserver_name", "message", "is_group", "created_at"}).
			AddRow(int64(1), int64(7), "Alice", nil, false, now).
			AddRow(int64(2), int64(8), "Group", nil, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM contributions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reservation_id", "amount_cents", "contributor_name", "is_anonymous", "created_at"}).
			AddRow(int64(5), int64(2), int64(300), "Bob", false, now).
			AddRow(int64(6), int64(2), int64(200), "Carol", true, now))

	got, err := NewLedgerStore(db).ListReservations(context.Background(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Empty(t, got[0].Contributions)
	require.Len(t, got[1].Contributions, 2)
	require.Equal(t, int64(300), got[1].Contributions[0].AmountCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReservationsEmptyInput(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	got, err := NewLedgerStore(db).ListReservations(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemRunsInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wishlist_items`)).
		WithArgs(int64(7), "Lego Technic", nil, nil, int64(1000), true, int64(1500), int64(100), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewLedgerStore(db)
	err = store.WithItemLock(context.Background(), 7, func(tx repository.LedgerTx, item *models.Item) error {
		target := int64(1500)
		item.Title = "Lego Technic"
		item.TargetAmountCents = &target
		_, err := tx.UpdateItem(context.Background(), item)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemMissingRowRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs(int64(7)).WillReturnRows(lockedItemRows(7))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE wishlist_items`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	store := NewLedgerStore(db)
	err = store.WithItemLock(context.Background(), 7, func(tx repository.LedgerTx, item *models.Item) error {
		_, err := tx.UpdateItem(context.Background(), item)
		return err
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
