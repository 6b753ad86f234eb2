package models

import "time"

// Reservation claims an item. A single-claim reservation (IsGroup false)
// blocks a non-group item; a group reservation anchors pooled contributions.
type Reservation struct {
	ID            int64          `json:"id" db:"id"`
	ItemID        int64          `json:"item_id" db:"item_id"`
	ReserverName  string         `json:"reserver_name" db:"reserver_name"`
	Message       *string        `json:"message" db:"message"`
	IsGroup       bool           `json:"is_group" db:"is_group"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	Contributions []Contribution `json:"contributions,omitempty"`
}

// Contribution is money pledged toward a group reservation.
type Contribution struct {
	ID              int64     `json:"id" db:"id"`
	ReservationID   int64     `json:"reservation_id" db:"reservation_id"`
	AmountCents     int64     `json:"amount_cents" db:"amount_cents"`
	ContributorName string    `json:"contributor_name" db:"contributor_name"`
	IsAnonymous     bool      `json:"is_anonymous" db:"is_anonymous"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// FundingState is derived from the reservations and contributions of an item.
type FundingState string

const (
	FundingOpen     FundingState = "open"
	FundingReserved FundingState = "reserved"
	FundingActive   FundingState = "funding"
	FundingFunded   FundingState = "funded"
)

// Funding summarises how far an item is from being covered.
type Funding struct {
	ItemID           int64        `json:"item_id"`
	State            FundingState `json:"state"`
	TargetCents      *int64       `json:"target_cents"`
	CollectedCents   int64        `json:"collected_cents"`
	RemainingCents   *int64       `json:"remaining_cents"`
	ReservationCount int          `json:"reservation_count"`
}
