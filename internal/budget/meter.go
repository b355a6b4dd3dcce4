// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package budget tracks and enforces session spend. The Meter is the single
// authority for cost: adapters charge it and never keep their own tallies.
package budget

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBudgetExceeded is returned by Charge when a charge would push spend
// past the ceiling. The charge is not applied.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Meter is a running tally of spent budget units with a fixed ceiling.
// Charge-and-check is a single atomic step: concurrent charges that would
// jointly overshoot the ceiling result in exactly the charges that fit
// succeeding, in submission order.
type Meter struct {
	mu      sync.Mutex
	ceiling float64
	spent   float64
}

// NewMeter creates a meter with the given ceiling. A ceiling of zero or
// less means every positive charge fails.
func NewMeter(ceiling float64) *Meter {
	return &Meter{ceiling: ceiling}
}

// Charge commits amount against the budget and returns the new total.
// It fails with ErrBudgetExceeded if spent+amount would pass the ceiling,
// leaving the tally unchanged. Negative amounts are rejected: spend only
// ever grows, and cancelled work is not refunded.
func (m *Meter) Charge(amount float64) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative charge %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spent+amount > m.ceiling {
		return m.spent, fmt.Errorf("charge %v with %v remaining: %w", amount, m.ceiling-m.spent, ErrBudgetExceeded)
	}
	m.spent += amount
	return m.spent, nil
}

// Remaining returns the budget units still available.
func (m *Meter) Remaining() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ceiling - m.spent
}

// Spent returns the total budget units consumed so far.
func (m *Meter) Spent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent
}

// Ceiling returns the configured spend limit.
func (m *Meter) Ceiling() float64 {
	return m.ceiling
}
