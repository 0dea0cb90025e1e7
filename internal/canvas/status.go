package canvas

// transitions lists the legal status edges.
var transitions = map[Status][]Status{
	StatusInbox:    {StatusActive, StatusTrash},
	StatusActive:   {StatusArchived, StatusTrash},
	StatusArchived: {StatusActive, StatusTrash},
	StatusTrash:    {StatusActive},
}

// CanTransition reports whether an item may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// fileStatus returns the status an item ends up in after an explicit
// filing move. Filing activates inbox and archived items; trashed items
// have to be restored first.
func fileStatus(s Status) (Status, bool) {
	switch s {
	case StatusTrash:
		return s, false
	default:
		return StatusActive, true
	}
}

// SetArchived moves an active item to the archive. Containment fields are
// kept so the item can be restored in place.
func (b *Board) SetArchived(id string) error {
	return b.setStatus("set_archived", id, StatusArchived)
}

// SetTrashed soft-deletes an item.
func (b *Board) SetTrashed(id string) error {
	return b.setStatus("set_trashed", id, StatusTrash)
}

// Restore brings an archived or trashed item back to active.
func (b *Board) Restore(id string) error {
	return b.setStatus("restore", id, StatusActive)
}

func (b *Board) setStatus(op, id string, to Status) error {
	return b.write(ChangeStatus, op, func() ([]string, error) {
		it, ok := b.items[id]
		if !ok {
			return nil, opErr(op, id, notFound("item", id))
		}
		if to == StatusActive && it.Status == StatusInbox {
			return nil, opErr(op, id, ErrInvalidTransition)
		}
		if !CanTransition(it.Status, to) {
			return nil, opErr(op, id, ErrInvalidTransition)
		}
		it.Status = to
		b.touchItem(it)
		return []string{id}, nil
	})
}
