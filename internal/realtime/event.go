package realtime

import "strconv"

// EventKind names a change that happened inside a wishlist.
type EventKind string

const (
	EventItemCreated       EventKind = "item_created"
	EventItemUpdated       EventKind = "item_updated"
	EventItemDeleted       EventKind = "item_deleted"
	EventItemReserved      EventKind = "item_reserved"
	EventContributionAdded EventKind = "contribution_added"
)

// Event is what subscribers receive. It carries no amounts or names: it only
// tells viewers to re-fetch the wishlist through the regular read path.
type Event struct {
	Type EventKind `json:"type"`
}

// RoomID is the room of a wishlist: the decimal form of its id. Every
// transport path for the same wishlist must resolve through here.
func RoomID(wishlistID int64) string {
	return strconv.FormatInt(wishlistID, 10)
}
