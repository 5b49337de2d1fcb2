// Package quote holds priced previews until they are committed or expire.
package quote

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/klear-trade/internal/fees"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultTTL is how long a preview can be redeemed.
const DefaultTTL = 120 * time.Second

// Quote is a frozen price and fee computation for an intended order.
// It is immutable once created and redeemed at most once.
type Quote struct {
	PreviewID     string              `json:"preview_id"`
	AccountID     string              `json:"account_id"`
	ClientID      string              `json:"client_id"`
	StockID       string              `json:"stock_id"`
	Symbol        string              `json:"symbol"`
	Side          types.Side          `json:"side"`
	ExecutionType types.ExecutionType `json:"execution_type"`
	Quantity      int64               `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	fees.Breakdown
	// Reserved is the amount held on the account's available balance for this quote.
	Reserved  decimal.Decimal `json:"reserved"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ExpiredHandler is called once for every quote that expires without a commit,
// after the quote has been removed from the store.
type ExpiredHandler func(Quote)

// Store keeps outstanding quotes keyed by preview ID.
type Store struct {
	mu        sync.Mutex
	quotes    map[string]Quote
	ttl       time.Duration
	now       func() time.Time
	onExpired ExpiredHandler
}

type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithExpiredHandler registers the callback run for expired quotes.
func WithExpiredHandler(h ExpiredHandler) Option {
	return func(s *Store) { s.onExpired = h }
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		quotes: make(map[string]Quote),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetExpiredHandler replaces the expiry callback.
func (s *Store) SetExpiredHandler(h ExpiredHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = h
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// NewPreviewID draws an identifier for a quote that is about to be created.
func NewPreviewID() string {
	return uuid.New().String()
}

// Create stores q and returns the stored copy. A preview ID is generated
// unless the caller already drew one with NewPreviewID.
func (s *Store) Create(q Quote) Quote {
	now := s.now()
	if q.PreviewID == "" {
		q.PreviewID = NewPreviewID()
	}
	q.CreatedAt = now
	q.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	s.quotes[q.PreviewID] = q
	s.mu.Unlock()

	return q
}

// Consume atomically removes and returns the quote. A quote owned by another
// client is reported as not found and left in place. An expired quote is
// removed, handed to the expiry handler and reported as expired.
func (s *Store) Consume(previewID, clientID string) (Quote, error) {
	s.mu.Lock()
	q, ok := s.quotes[previewID]
	if !ok || (clientID != "" && q.ClientID != clientID) {
		s.mu.Unlock()
		return Quote{}, types.ErrQuoteNotFound
	}
	delete(s.quotes, previewID)
	expired := !s.now().Before(q.ExpiresAt)
	handler := s.onExpired
	s.mu.Unlock()

	if expired {
		if handler != nil {
			handler(q)
		}
		return Quote{}, types.ErrQuoteExpired
	}
	return q, nil
}

// SweepExpired removes every quote past its expiry, runs the expiry handler
// for each and returns how many were removed.
func (s *Store) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	var expired []Quote
	for id, q := range s.quotes {
		if !now.Before(q.ExpiresAt) {
			expired = append(expired, q)
			delete(s.quotes, id)
		}
	}
	handler := s.onExpired
	s.mu.Unlock()

	if handler != nil {
		for _, q := range expired {
			handler(q)
		}
	}
	return len(expired)
}

// Len returns the number of outstanding quotes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}
