package types

import (
	"fmt"
	"sort"
	"strings"
)

// OrderItem is one line of an order as the kitchen sees it. Stored as jsonb
// on the order row; modifiers are part of the item identity so two items with
// different modifiers never compare equal.
type OrderItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Validate checks the fields the kitchen relies on.
func (i OrderItem) Validate() error {
	if strings.TrimSpace(i.MenuItemID) == "" {
		return fmt.Errorf("order item: menu item id required")
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("order item: quantity must be positive")
	}
	return nil
}

// Fingerprint returns a canonical string for the item, independent of
// modifier ordering. Used for duplicate-order detection.
func (i OrderItem) Fingerprint() string {
	mods := make([]string, len(i.Modifiers))
	copy(mods, i.Modifiers)
	sort.Strings(mods)
	return fmt.Sprintf("%s|%d|%s", i.MenuItemID, i.Quantity, strings.Join(mods, ","))
}

// OrderItems is the ordered sequence of items on one order.
type OrderItems []OrderItem

// Fingerprint returns a canonical string for the whole item set, independent
// of item ordering, so identical orders compare equal.
func (items OrderItems) Fingerprint() string {
	prints := make([]string, 0, len(items))
	for _, item := range items {
		prints = append(prints, item.Fingerprint())
	}
	sort.Strings(prints)
	return strings.Join(prints, ";")
}

// Validate checks every item.
func (items OrderItems) Validate() error {
	for idx, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", idx, err)
		}
	}
	return nil
}
