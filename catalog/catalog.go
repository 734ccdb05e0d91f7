// Package catalog resolves card identifiers to the card identity searched
// on the marketplaces
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/cardprice/storage/types"
)

var (
	ErrCardNotFound  = errors.New("card not found")
	errMissingID     = errors.New("card id is required")
	errMissingName   = errors.New("card name is required")
	errDuplicateCard = errors.New("duplicate card id")
)

// Catalog is the card master data lookup
type Catalog interface {
	// Card fetches the identity of the given card.
	// Returns ErrCardNotFound for unknown ids
	Card(ctx context.Context, id string) (*types.CardIdentity, error)
}

// Memory is an in-memory catalog
type Memory struct {
	cards map[string]types.CardIdentity

	mu sync.RWMutex
}

// NewMemory creates an empty in-memory catalog
func NewMemory() *Memory {
	return &Memory{
		cards: make(map[string]types.CardIdentity),
	}
}

// Add registers a card under the given id, replacing any previous entry
func (m *Memory) Add(id string, card types.CardIdentity) error {
	id = strings.TrimSpace(id)

	switch {
	case id == "":
		return errMissingID
	case strings.TrimSpace(card.Name) == "" && strings.TrimSpace(card.LocalizedName) == "":
		return fmt.Errorf("%w: %s", errMissingName, id)
	}

	m.mu.Lock()
	m.cards[id] = card
	m.mu.Unlock()

	return nil
}

func (m *Memory) Card(_ context.Context, id string) (*types.CardIdentity, error) {
	m.mu.RLock()
	card, ok := m.cards[strings.TrimSpace(id)]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}

	return &card, nil
}

// IDs returns the registered card ids, sorted
func (m *Memory) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.cards))
	for id := range m.cards {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Len returns the number of registered cards
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cards)
}

// file is the TOML catalog layout
type file struct {
	Cards []record `toml:"card"`
}

type record struct {
	ID            string `toml:"id"`
	Name          string `toml:"name"`
	LocalizedName string `toml:"localized_name"`
	Set           string `toml:"set"`
	LocalizedSet  string `toml:"localized_set"`
	Number        string `toml:"number"`
}

// Parse parses a TOML catalog:
//
//	[[card]]
//	id = "base1-4"
//	name = "Charizard"
//	set = "Base Set"
//	number = "4/102"
func Parse(content []byte) (*Memory, error) {
	var f file

	if err := toml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}

	m := NewMemory()

	for _, r := range f.Cards {
		if _, err := m.Card(context.Background(), r.ID); err == nil {
			return nil, fmt.Errorf("%w: %s", errDuplicateCard, r.ID)
		}

		number, err := types.ParsePrintedNumber(r.Number)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", r.ID, err)
		}

		if err := m.Add(r.ID, types.CardIdentity{
			Name:          r.Name,
			LocalizedName: r.LocalizedName,
			Set:           r.Set,
			LocalizedSet:  r.LocalizedSet,
			Number:        number,
		}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ReadFile reads a TOML catalog from the given path
func ReadFile(path string) (*Memory, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(content)
}
