package clipboard

import (
	"context"
	"fmt"
	"sync"
)

// MockSelection is an in-memory Selection for tests.
type MockSelection struct {
	mu sync.Mutex

	// Offers maps mime type to data for the current owner.
	Offers map[string][]byte
	// Order is the order MimeTypes reports offers in.
	Order []string
	// Written records every Write call.
	Written []Content
	// Err is returned by every call when set.
	Err error

	changes chan struct{}
	gone    chan struct{}
}

// NewMockSelection creates an empty mock selection.
func NewMockSelection() *MockSelection {
	return &MockSelection{
		Offers:  make(map[string][]byte),
		changes: make(chan struct{}, 1),
		gone:    make(chan struct{}),
	}
}

// Offer replaces the current owner's content without signalling a change.
func (m *MockSelection) Offer(contents ...Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Offers = make(map[string][]byte, len(contents))
	m.Order = m.Order[:0]
	for _, c := range contents {
		m.Offers[c.MimeType] = c.Data
		m.Order = append(m.Order, c.MimeType)
	}
}

// Notify signals an owner change. Pending signals coalesce.
func (m *MockSelection) Notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Set offers a single content and signals an owner change.
func (m *MockSelection) Set(mimeType string, data []byte) {
	m.Offer(Content{MimeType: mimeType, Data: data})
	m.Notify()
}

// Disconnect closes every open Changes channel, as when the display goes
// away. Channels opened afterwards close immediately until Reconnect.
func (m *MockSelection) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.gone:
	default:
		close(m.gone)
	}
}

// Reconnect undoes Disconnect for Changes channels opened afterwards.
func (m *MockSelection) Reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.gone:
		m.gone = make(chan struct{})
	default:
	}
}

func (m *MockSelection) Changes(ctx context.Context) <-chan struct{} {
	m.mu.Lock()
	gone := m.gone
	m.mu.Unlock()

	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-gone:
				return
			case <-m.changes:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (m *MockSelection) MimeTypes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.Order...), nil
}

func (m *MockSelection) Read(ctx context.Context, mimeType string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.Offers[mimeType]
	if !ok {
		return nil, fmt.Errorf("mime type %q not offered", mimeType)
	}
	return data, nil
}

// Write records c, makes it the current offer and signals an owner change,
// as a real selection does when this process takes ownership.
func (m *MockSelection) Write(ctx context.Context, c Content) error {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	m.Written = append(m.Written, c)
	m.Offers = map[string][]byte{c.MimeType: c.Data}
	m.Order = []string{c.MimeType}
	m.mu.Unlock()

	m.Notify()
	return nil
}

// LastWritten returns the most recent Write, if any.
func (m *MockSelection) LastWritten() (Content, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Written) == 0 {
		return Content{}, false
	}
	return m.Written[len(m.Written)-1], true
}
