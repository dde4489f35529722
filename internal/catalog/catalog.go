package catalog

import (
	"fmt"
	"sort"

	"legacy-portal/internal/apperr"
)

const (
	LockpickItemID = 400
	LockpickPrice  = 20
)

// Item is something the shop sells for LegacyCoin. Value is handed to the
// game server as-is when the item is delivered.
type Item struct {
	ID    int    `json:"itemId"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Value string `json:"-"`
}

type Catalog struct {
	items     map[int]Item
	defaultID int
}

// Default returns the shop's item list. A non-positive price keeps the built-in price.
func Default(lockpickPrice int64) *Catalog {
	if lockpickPrice <= 0 {
		lockpickPrice = LockpickPrice
	}
	c, _ := New(LockpickItemID, Item{ID: LockpickItemID, Name: "Lockpick", Price: lockpickPrice, Value: "1"})
	return c
}

func New(defaultID int, items ...Item) (*Catalog, error) {
	c := &Catalog{items: make(map[int]Item, len(items)), defaultID: defaultID}
	for _, item := range items {
		if item.Price < 0 {
			return nil, fmt.Errorf("item %d has negative price", item.ID)
		}
		c.items[item.ID] = item
	}
	if _, ok := c.items[defaultID]; !ok {
		return nil, fmt.Errorf("default item %d not in catalog", defaultID)
	}
	return c, nil
}

// Lookup resolves an item id; zero selects the default item.
func (c *Catalog) Lookup(id int) (Item, error) {
	if id == 0 {
		id = c.defaultID
	}
	item, ok := c.items[id]
	if !ok {
		return Item{}, apperr.ErrUnknownItem
	}
	return item, nil
}

func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
