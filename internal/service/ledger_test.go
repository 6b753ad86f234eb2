package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/wishlistd/internal/models"
	"github.com/Kerhoff/wishlistd/internal/realtime"
)

func TestContributionSequenceAgainstTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{
		Title:                "Bike",
		AllowGroupFunding:    true,
		TargetAmountCents:    cents(1000),
		MinContributionCents: cents(100),
	})

	_, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Alice", AmountCents: 400})
	require.NoError(t, err)
	funding, err := f.svc.Funding(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(600), *funding.RemainingCents)
	require.Equal(t, models.FundingActive, funding.State)

	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Bob", AmountCents: 700})
	require.ErrorIs(t, err, ErrExceedsRemaining)
	funding, err = f.svc.Funding(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(600), *funding.RemainingCents)

	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Carol", AmountCents: 600})
	require.NoError(t, err)

	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Dave", AmountCents: 1})
	require.ErrorIs(t, err, ErrExceedsRemaining)

	funding, err = f.svc.Funding(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, models.FundingFunded, funding.State)
	require.Equal(t, int64(1000), funding.CollectedCents)
	require.Equal(t, int64(0), *funding.RemainingCents)
	require.Equal(t, 1, funding.ReservationCount)

	require.Equal(t, 2, f.pub.count(realtime.EventContributionAdded))
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.rejections.WithLabelValues("contribute", "exceeds_remaining")))
}

func TestContributionsShareOneGroupReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Camera", AllowGroupFunding: true, PriceCents: cents(500)})

	first, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Alice", AmountCents: 200})
	require.NoError(t, err)
	second, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Bob", AmountCents: 300, IsAnonymous: true})
	require.NoError(t, err)
	require.Equal(t, first.ReservationID, second.ReservationID)

	reservations, err := f.store.Ledger().ListReservations(ctx, []int64{item.ID})
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	require.True(t, reservations[0].IsGroup)
	require.Equal(t, "Alice", reservations[0].ReserverName)
	require.Len(t, reservations[0].Contributions, 2)
}

func TestBelowMinimumLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{
		Title:                "Bike",
		AllowGroupFunding:    true,
		TargetAmountCents:    cents(1000),
		MinContributionCents: cents(100),
	})
	f.pub.reset()

	_, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Alice", AmountCents: 50})
	require.ErrorIs(t, err, ErrBelowMinimum)

	reservations, err := f.store.Ledger().ListReservations(ctx, []int64{item.ID})
	require.NoError(t, err)
	require.Empty(t, reservations)
	require.Empty(t, f.pub.kinds())
}

func TestContributeRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	single := f.addItem(t, ItemInput{Title: "Book", PriceCents: cents(100)})
	noTarget := f.addItem(t, ItemInput{Title: "Mystery", AllowGroupFunding: true})
	zeroTarget := f.addItem(t, ItemInput{Title: "Free", AllowGroupFunding: true, TargetAmountCents: cents(0), PriceCents: cents(0)})

	_, err := f.svc.Contribute(ctx, 999999, ContributeInput{ContributorName: "A", AmountCents: 10})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Contribute(ctx, single.ID, ContributeInput{ContributorName: "A", AmountCents: 10})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Contribute(ctx, noTarget.ID, ContributeInput{ContributorName: "A", AmountCents: 10})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Contribute(ctx, zeroTarget.ID, ContributeInput{ContributorName: "A", AmountCents: 10})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Contribute(ctx, noTarget.ID, ContributeInput{ContributorName: "  ", AmountCents: 10})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Contribute(ctx, noTarget.ID, ContributeInput{ContributorName: "A", AmountCents: 0})
	require.ErrorIs(t, err, ErrValidation)
}

func TestTargetFallsBackToPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Lamp", AllowGroupFunding: true, PriceCents: cents(300)})

	_, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "A", AmountCents: 301})
	require.ErrorIs(t, err, ErrExceedsRemaining)
	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "A", AmountCents: 300})
	require.NoError(t, err)
}

func TestSingleClaimReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Book"})
	f.pub.reset()

	res, err := f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Alice"})
	require.NoError(t, err)
	require.False(t, res.IsGroup)

	_, err = f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Bob"})
	require.ErrorIs(t, err, ErrConflict)

	require.Equal(t, []realtime.EventKind{realtime.EventItemReserved}, f.pub.kinds())

	funding, err := f.svc.Funding(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, models.FundingReserved, funding.State)
	require.Nil(t, funding.TargetCents)
}

func TestReserveMissingItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Reserve(context.Background(), 424242, ReserveInput{ReserverName: "Alice"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSecondGroupReservationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Sofa", AllowGroupFunding: true, PriceCents: cents(1000)})

	_, err := f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Team", IsGroup: true})
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Other team", IsGroup: true})
	require.ErrorIs(t, err, ErrConflict)

	// plain claims on a group-funded item stay allowed
	_, err = f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Alice"})
	require.NoError(t, err)
}

func TestConcurrentReservationsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Watch"})
	f.pub.reset()

	const n = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Guest"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, n-1, conflicts)
	require.Equal(t, 1, f.pub.count(realtime.EventItemReserved))
}

func TestConcurrentContributionsNeverExceedTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Trip", AllowGroupFunding: true, TargetAmountCents: cents(1000)})

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Guest", AmountCents: 100})
		}()
	}
	wg.Wait()

	funding, err := f.svc.Funding(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), funding.CollectedCents)
	require.Equal(t, models.FundingFunded, funding.State)
	require.Equal(t, 10, f.pub.count(realtime.EventContributionAdded))
}

func TestEventsFollowCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{Title: "Kettle", AllowGroupFunding: true, PriceCents: cents(500)})

	var seen []int
	f.pub.onPublish = func(room string, evt realtime.Event) {
		require.Equal(t, realtime.RoomID(f.list.ID), room)
		reservations, err := f.store.Ledger().ListReservations(ctx, []int64{item.ID})
		require.NoError(t, err)
		seen = append(seen, len(reservations))
	}

	_, err := f.svc.Reserve(ctx, item.ID, ReserveInput{ReserverName: "Alice"})
	require.NoError(t, err)
	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Bob", AmountCents: 100})
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, seen)
}

func TestFundingOfUntouchedItem(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, ItemInput{Title: "Vase", AllowGroupFunding: true, TargetAmountCents: cents(250)})

	funding, err := f.svc.Funding(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, models.FundingOpen, funding.State)
	require.Equal(t, int64(250), *funding.TargetCents)
	require.Equal(t, int64(250), *funding.RemainingCents)

	_, err = f.svc.Funding(context.Background(), 777777)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemainingIsCheckedBeforeMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, ItemInput{
		Title:                "Sofa",
		AllowGroupFunding:    true,
		TargetAmountCents:    cents(1000),
		MinContributionCents: cents(100),
	})

	_, err := f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Alice", AmountCents: 950})
	require.NoError(t, err)

	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Bob", AmountCents: 60})
	require.ErrorIs(t, err, ErrExceedsRemaining)

	_, err = f.svc.Contribute(ctx, item.ID, ContributeInput{ContributorName: "Bob", AmountCents: 40})
	require.ErrorIs(t, err, ErrBelowMinimum)
}
