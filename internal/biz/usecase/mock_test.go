package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

// Mock implementations

type mockRecordRepo struct {
	mu      sync.Mutex
	records map[string]*domain.MessageRecord

	// Number of lookups by provider ID that miss before the row becomes visible
	visibleAfter map[string]int

	findErr      error
	fallbackErr  error
	attributeErr error

	findCalls      int
	fallbackCalls  int
	attributeCalls int
	lastSince      time.Time
}

func newMockRecordRepo(records ...domain.MessageRecord) *mockRecordRepo {
	m := &mockRecordRepo{
		records:      make(map[string]*domain.MessageRecord),
		visibleAfter: make(map[string]int),
	}
	for i := range records {
		r := records[i]
		m.records[r.ID] = &r
	}
	return m
}

func (m *mockRecordRepo) FindByProviderID(ctx context.Context, providerMessageID string) (*domain.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.findCalls <= m.visibleAfter[providerMessageID] {
		return nil, domain.ErrRecordNotFound
	}
	for _, r := range m.records {
		if r.ProviderMessageID == providerMessageID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (m *mockRecordRepo) FindRecentByContent(ctx context.Context, conversationID, body string, direction domain.Direction, since time.Time) ([]domain.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallbackCalls++
	m.lastSince = since
	if m.fallbackErr != nil {
		return nil, m.fallbackErr
	}

	var result []domain.MessageRecord
	for _, r := range m.records {
		if r.ConversationID == conversationID && r.Body == body && r.Direction == direction && !r.CreatedAt.Before(since) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockRecordRepo) AttributeIfUnset(ctx context.Context, recordID string, identity domain.Identity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attributeCalls++
	if m.attributeErr != nil {
		return false, m.attributeErr
	}
	r, ok := m.records[recordID]
	if !ok || r.IsAttributed() {
		return false, nil
	}
	id := identity
	r.Attribution = &id
	return true, nil
}

func (m *mockRecordRepo) InsertFromWebhook(ctx context.Context, record *domain.MessageRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if record.ProviderMessageID != "" && r.ProviderMessageID == record.ProviderMessageID {
			return false, nil
		}
	}
	cp := *record
	m.records[record.ID] = &cp
	return true, nil
}

func (m *mockRecordRepo) Close() error {
	return nil
}

func (m *mockRecordRepo) storeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findCalls + m.fallbackCalls + m.attributeCalls
}

func (m *mockRecordRepo) attribution(recordID string) *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[recordID]; ok {
		return r.Attribution
	}
	return nil
}

type mockProviderRepo struct {
	receipt   *domain.ProviderReceipt
	err       error
	sendCalls int
	lastReq   *domain.SendRequest
	afterSend func() // runs once the provider has accepted the message
}

func (m *mockProviderRepo) Send(ctx context.Context, req *domain.SendRequest) (*domain.ProviderReceipt, error) {
	m.sendCalls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.afterSend != nil {
		m.afterSend()
	}
	return m.receipt, nil
}

var testCorrelatorConfig = CorrelatorConfig{
	MaxAttempts:    3,
	PollDelay:      0,
	PollTimeout:    time.Second,
	FallbackWindow: time.Minute,
}
