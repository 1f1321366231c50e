package transform

// StockLevel is the display state of a product's inventory.
type StockLevel string

const (
	InStock    StockLevel = "in-stock"
	LowStock   StockLevel = "low-stock"
	OutOfStock StockLevel = "out-of-stock"
)

// LowStockThreshold is the highest quantity still shown as low stock.
const LowStockThreshold = 5

// StockStatus maps inventory fields to a StockLevel.
func StockStatus(inStock bool, quantity int) StockLevel {
	switch {
	case !inStock || quantity <= 0:
		return OutOfStock
	case quantity <= LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}
