package models

// CartItem is one (product, pack size) line. Quantity counts packs.
type CartItem struct {
	ID          uint64 `json:"id"`
	UserID      uint64 `json:"-"`
	ProductID   uint64 `json:"product_id"`
	PackSize    int    `json:"pack_size"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	ImageURL    string `json:"image_url"`
	Stock       int64  `json:"stock"`
}

// Units is the number of cans the line represents.
func (c *CartItem) Units() int64 {
	return int64(c.Quantity) * int64(c.PackSize)
}
