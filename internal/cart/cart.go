package cart

// Product is the catalog snapshot a line is built from.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// Line is one distinct product in the cart. UnitPrice is frozen when the
// product is first added.
type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

func (l Line) Total() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Cart is the in-memory line list of one terminal. It is not safe for
// concurrent use; the owning session serialises access.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// Add merges into an existing line or appends a new line with quantity 1.
func (c *Cart) Add(p Product) {
	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		UnitPrice: p.Price,
		Quantity:  1,
	})
}

// UpdateQuantity applies delta to a line. Quantity never drops below 1; use
// Remove to drop a line. It reports whether the product was in the cart.
func (c *Cart) UpdateQuantity(productID string, delta int) bool {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Quantity = max(1, c.lines[i].Quantity+delta)
			return true
		}
	}
	return false
}

func (c *Cart) Remove(productID string) bool {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole line set, used when a parked order is recalled.
// Lines with a non-positive quantity are dropped.
func (c *Cart) Replace(lines []Line) {
	c.lines = c.lines[:0]
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		c.lines = append(c.lines, l)
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func (c *Cart) Subtotal() float64 {
	return Subtotal(c.lines)
}

// Subtotal is Σ(unitPrice × quantity) over lines.
func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}
