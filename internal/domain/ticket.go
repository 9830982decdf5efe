package domain

import "time"

// Tag is a label from the helpdesk tag catalog.
type Tag struct {
	ID   string
	Name string
}

// Ticket carries the fields the classifier reads.
type Ticket struct {
	ID        string
	Subject   string
	Issue     string
	CreatedAt time.Time
	Tags      []Tag
}

// TicketCursor is a keyset position in newest-first ticket order.
type TicketCursor struct {
	CreatedAt time.Time
	ID        string
}

// Cursor returns the keyset position of t.
func (t *Ticket) Cursor() TicketCursor {
	return TicketCursor{CreatedAt: t.CreatedAt, ID: t.ID}
}

// Tagged reports whether the ticket already carries at least one tag.
func (t *Ticket) Tagged() bool {
	return len(t.Tags) > 0
}

// TagNames returns the names of tags in order.
func TagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}
