// Package cart is the shopping-cart state container. Mutations are plain
// functions on Cart; Session persists the cart after every one of them.
package cart

// StorageKey is the fixed key carts are persisted under.
const StorageKey = "cart-v1"

type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"` // net, tax exclusive
	Qty      int     `json:"qty"`
	ImageURL string  `json:"image_url,omitempty"`
	SKU      string  `json:"sku,omitempty"`
}

type Cart struct {
	Items []Item `json:"items"`
}

// Add puts qty units of it in the cart, merging with an existing line of the
// same id. qty below 1 counts as 1.
func (c *Cart) Add(it Item, qty int) {
	if qty < 1 {
		qty = 1
	}
	for i := range c.Items {
		if c.Items[i].ID == it.ID {
			c.Items[i].Qty += qty
			return
		}
	}
	it.Qty = qty
	c.Items = append(c.Items, it)
}

func (c *Cart) Inc(id string) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Qty++
			return
		}
	}
}

// Dec lowers the quantity by one; a line reaching zero is removed.
func (c *Cart) Dec(id string) {
	for i := range c.Items {
		if c.Items[i].ID != id {
			continue
		}
		if c.Items[i].Qty <= 1 {
			c.Remove(id)
			return
		}
		c.Items[i].Qty--
		return
	}
}

func (c *Cart) Remove(id string) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	c.Items = out
}

func (c *Cart) Clear() {
	c.Items = nil
}

// Count is the sum of quantities.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Qty
	}
	return n
}

// Total is the net sum of price*qty.
func (c *Cart) Total() float64 {
	var t float64
	for _, it := range c.Items {
		t += it.Price * float64(it.Qty)
	}
	return t
}

// normalize repairs persisted data: missing quantities become 1.
func (c *Cart) normalize() {
	for i := range c.Items {
		if c.Items[i].Qty < 1 {
			c.Items[i].Qty = 1
		}
	}
}
