package models

import "time"

// Wishlist is an owner's gift registry. Guests reach it through PublicSlug.
type Wishlist struct {
	ID          int64      `json:"id" db:"id"`
	OwnerID     int64      `json:"-" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	EventDate   *time.Time `json:"event_date" db:"event_date"`
	PublicSlug  string     `json:"public_slug" db:"public_slug"`
	IsPublic    bool       `json:"is_public" db:"is_public"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Item represents a gift inside a wishlist. Money amounts are in cents.
type Item struct {
	ID                   int64     `json:"id" db:"id"`
	WishlistID           int64     `json:"wishlist_id" db:"wishlist_id"`
	Title                string    `json:"title" db:"title"`
	URL                  *string   `json:"url" db:"url"`
	ImageURL             *string   `json:"image_url" db:"image_url"`
	PriceCents           *int64    `json:"price_cents" db:"price_cents"`
	AllowGroupFunding    bool      `json:"allow_group_funding" db:"allow_group_funding"`
	TargetAmountCents    *int64    `json:"target_amount_cents" db:"target_amount_cents"`
	MinContributionCents *int64    `json:"min_contribution_cents" db:"min_contribution_cents"`
	SourceUnavailable    bool      `json:"source_unavailable" db:"source_unavailable"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// FundingTarget returns the amount a group-funded item needs: the explicit
// target when set, otherwise the price. ok is false when neither is a
// positive amount.
func (i *Item) FundingTarget() (target int64, ok bool) {
	if i.TargetAmountCents != nil && *i.TargetAmountCents > 0 {
		return *i.TargetAmountCents, true
	}
	if i.PriceCents != nil && *i.PriceCents > 0 {
		return *i.PriceCents, true
	}
	return 0, false
}
