package core

import "github.com/kilupskalvis/clipvault/internal/models"

// Observer is notified of history changes. Callbacks run after the tracker
// has released its lock and may call back into it.
type Observer interface {
	EntryAdded(e *models.Entry)
	EntryRemoved(id int64)
	EntryChanged(id int64, field models.Field)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	Added   func(e *models.Entry)
	Removed func(id int64)
	Changed func(id int64, field models.Field)
}

func (o ObserverFuncs) EntryAdded(e *models.Entry) {
	if o.Added != nil {
		o.Added(e)
	}
}

func (o ObserverFuncs) EntryRemoved(id int64) {
	if o.Removed != nil {
		o.Removed(id)
	}
}

func (o ObserverFuncs) EntryChanged(id int64, field models.Field) {
	if o.Changed != nil {
		o.Changed(id, field)
	}
}

type eventKind int

const (
	eventAdded eventKind = iota
	eventRemoved
	eventChanged
)

type event struct {
	kind  eventKind
	entry *models.Entry
	id    int64
	field models.Field
}

// events buffers notifications raised while the tracker lock is held.
type events []event

func (ev *events) added(e *models.Entry) {
	*ev = append(*ev, event{kind: eventAdded, entry: e.Clone(), id: e.ID})
}

func (ev *events) removed(id int64) {
	*ev = append(*ev, event{kind: eventRemoved, id: id})
}

func (ev *events) changed(id int64, field models.Field) {
	*ev = append(*ev, event{kind: eventChanged, id: id, field: field})
}

func (ev events) fire(o Observer) {
	if o == nil {
		return
	}
	for _, e := range ev {
		switch e.kind {
		case eventAdded:
			o.EntryAdded(e.entry)
		case eventRemoved:
			o.EntryRemoved(e.id)
		case eventChanged:
			o.EntryChanged(e.id, e.field)
		}
	}
}
