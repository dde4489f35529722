package catalog

import (
	"errors"
	"testing"

	"legacy-portal/internal/apperr"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default(0)
	item, err := c.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup(0): %v", err)
	}
	if item.ID != LockpickItemID || item.Price != LockpickPrice || item.Value != "1" {
		t.Errorf("unexpected default item %+v", item)
	}
	if len(c.Items()) != 1 {
		t.Errorf("expected one item, got %d", len(c.Items()))
	}
}

func TestDefaultCatalogPriceOverride(t *testing.T) {
	item, err := Default(35).Lookup(LockpickItemID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Price != 35 {
		t.Errorf("expected price 35, got %d", item.Price)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default(0).Lookup(999)
	if !errors.Is(err, apperr.ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestNewRejectsBadItems(t *testing.T) {
	if _, err := New(1, Item{ID: 1, Price: -5}); err == nil {
		t.Error("expected error for negative price")
	}
	if _, err := New(2, Item{ID: 1, Price: 5}); err == nil {
		t.Error("expected error for missing default item")
	}
}
