package session

import (
	"sync"

	"github.com/google/uuid"
)

// LogEntry counts the traffic of one session. It is updated every time a
// PDU is written or received.
type LogEntry struct {
	SentPDUs      uint64 `json:"sent_pdus"`
	ReceivedPDUs  uint64 `json:"received_pdus"`
	SentBytes     uint64 `json:"sent_bytes"`
	ReceivedBytes uint64 `json:"received_bytes"`
}

// LogStore stores session log entries.
type LogStore interface {
	Entry(id uuid.UUID) (*LogEntry, error)
	Record(id uuid.UUID, entry *LogEntry) error
}

type inMemoryLogStore struct {
	entries map[uuid.UUID]*LogEntry
	mu      sync.Mutex
}

// InMemoryLogStore implements an in-memory LogStore.
func InMemoryLogStore() LogStore {
	return &inMemoryLogStore{
		entries: map[uuid.UUID]*LogEntry{},
	}
}

func (ls *inMemoryLogStore) Entry(id uuid.UUID) (*LogEntry, error) {
	ls.mu.Lock()
	entry, ok := ls.entries[id]
	ls.mu.Unlock()
	if !ok {
		return nil, nil
	}

	cp := *entry
	return &cp, nil
}

func (ls *inMemoryLogStore) Record(id uuid.UUID, entry *LogEntry) error {
	cp := *entry
	ls.mu.Lock()
	ls.entries[id] = &cp
	ls.mu.Unlock()
	return nil
}
