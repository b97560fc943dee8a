package payments

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/freshfold/freshfold-backend/pkg/money"
)

// Receipt records the outcome of a charge or credit against the provider.
type Receipt struct {
	ProviderID string
	Amount     money.Cents
	Memo       string
}

// Collaborator is the payment surface the subscription and proration flows
// depend on. Implementations must be safe for concurrent use.
type Collaborator interface {
	HasDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (bool, error)
	Charge(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error)
	Credit(ctx context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error)
}

// InMemoryCollaborator is a stand-in used by tests and dev mode. Charges and
// credits are recorded, never sent anywhere.
type InMemoryCollaborator struct {
	mu       sync.Mutex
	methods  map[uuid.UUID]bool
	Charges  []Receipt
	Credits  []Receipt
	FailNext error
}

// NewInMemoryCollaborator builds an empty stub with no payment methods on file.
func NewInMemoryCollaborator() *InMemoryCollaborator {
	return &InMemoryCollaborator{methods: map[uuid.UUID]bool{}}
}

// AddPaymentMethod marks the user as having a chargeable card on file.
func (c *InMemoryCollaborator) AddPaymentMethod(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.methods[userID] = true
}

func (c *InMemoryCollaborator) HasDefaultPaymentMethod(_ context.Context, userID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.methods[userID], nil
}

func (c *InMemoryCollaborator) Charge(_ context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure(); err != nil {
		return nil, err
	}
	receipt := Receipt{ProviderID: "stub-charge-" + uuid.NewString(), Amount: amount, Memo: memo}
	c.Charges = append(c.Charges, receipt)
	return &receipt, nil
}

func (c *InMemoryCollaborator) Credit(_ context.Context, userID uuid.UUID, amount money.Cents, memo string) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure(); err != nil {
		return nil, err
	}
	receipt := Receipt{ProviderID: "stub-credit-" + uuid.NewString(), Amount: amount, Memo: memo}
	c.Credits = append(c.Credits, receipt)
	return &receipt, nil
}

func (c *InMemoryCollaborator) takeFailure() error {
	err := c.FailNext
	c.FailNext = nil
	return err
}
