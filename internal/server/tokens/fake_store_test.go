package tokens

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
	"github.com/dmitrijs2005/r2relay/internal/server/recordstore"
)

var testFieldIDs = config.FieldIDs{
	ID: 101, Active: 102, Username: 103, Email: 104,
	Token: 105, CreatedAt: 106, ExpiresAt: 107, IsPermanent: 108,
}

// memStore is an in-memory recordstore.Repository.
type memStore struct {
	mu      sync.Mutex
	next    int
	records map[recordstore.RecordID][]recordstore.Answer

	creates int
	updates int
	// failWith, when set, is returned by every call.
	failWith error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[recordstore.RecordID][]recordstore.Answer)}
}

func (m *memStore) CreateRecord(ctx context.Context, answers []recordstore.Answer) (recordstore.RecordID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	m.next++
	m.creates++
	id := recordstore.RecordID(strconv.Itoa(m.next))
	m.records[id] = append([]recordstore.Answer(nil), answers...)
	return id, nil
}

func (m *memStore) FindByField(ctx context.Context, field recordstore.Field, value string) (*recordstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for id, answers := range m.records {
		for _, a := range answers {
			if a.QueID == field.ID && a.First() == value {
				return &recordstore.Record{ID: id, Answers: append([]recordstore.Answer(nil), answers...)}, nil
			}
		}
	}
	return nil, fmt.Errorf("mem: %w", common.ErrorNotFound)
}

func (m *memStore) UpdateByID(ctx context.Context, id recordstore.RecordID, answers []recordstore.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	cur, ok := m.records[id]
	if !ok {
		return fmt.Errorf("mem: %w", common.ErrRemoteService)
	}
	m.updates++
	for _, a := range answers {
		replaced := false
		for i := range cur {
			if cur[i].QueID == a.QueID {
				cur[i] = a
				replaced = true
			}
		}
		if !replaced {
			cur = append(cur, a)
		}
	}
	m.records[id] = cur
	return nil
}

// field returns the stored value of field fid in record id.
func (m *memStore) field(id recordstore.RecordID, fid int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.records[id] {
		if a.QueID == fid {
			return a.First(), true
		}
	}
	return "", false
}
