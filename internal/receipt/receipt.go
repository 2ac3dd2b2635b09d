package receipt

import "time"

// Receipt-level expense categories.
const (
	CategoryFoodDining    = "Food & Dining"
	CategoryGroceries     = "Groceries"
	CategoryFuelTransport = "Fuel & Transport"
	CategoryMedical       = "Medical"
	CategoryEntertainment = "Entertainment"
	CategoryShopping      = "Shopping"
	CategoryUtilities     = "Utilities"
	CategoryEducation     = "Education"
	CategoryHomeGarden    = "Home & Garden"
	CategoryMaintenance   = "Maintenance"
	CategoryOther         = "Other"
)

// Item-level categories, a smaller taxonomy than the receipt-level one.
const (
	ItemCategoryDining        = "Dining"
	ItemCategoryGroceries     = "Groceries"
	ItemCategoryTransport     = "Transport"
	ItemCategoryEntertainment = "Entertainment"
	ItemCategoryShopping      = "Shopping"
	ItemCategoryMedical       = "Medical"
	ItemCategoryUtilities     = "Utilities"
	ItemCategoryEducation     = "Education"
	ItemCategoryHome          = "Home"
	ItemCategoryOther         = "Other"
)

// Categories lists all valid receipt-level categories
var Categories = []string{
	CategoryFoodDining,
	CategoryGroceries,
	CategoryFuelTransport,
	CategoryMedical,
	CategoryEntertainment,
	CategoryShopping,
	CategoryUtilities,
	CategoryEducation,
	CategoryHomeGarden,
	CategoryMaintenance,
	CategoryOther,
}

// ItemCategories lists all valid item-level categories
var ItemCategories = []string{
	ItemCategoryDining,
	ItemCategoryGroceries,
	ItemCategoryTransport,
	ItemCategoryEntertainment,
	ItemCategoryShopping,
	ItemCategoryMedical,
	ItemCategoryUtilities,
	ItemCategoryEducation,
	ItemCategoryHome,
	ItemCategoryOther,
}

// ValidCategory reports whether s is a known receipt-level category
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// ValidItemCategory reports whether s is a known item-level category
func ValidItemCategory(s string) bool {
	for _, c := range ItemCategories {
		if c == s {
			return true
		}
	}
	return false
}

// CategoryForItemCategory maps an item-level category to the receipt-level
// category it rolls up into
func CategoryForItemCategory(itemCategory string) string {
	switch itemCategory {
	case ItemCategoryDining:
		return CategoryFoodDining
	case ItemCategoryGroceries:
		return CategoryGroceries
	case ItemCategoryTransport:
		return CategoryFuelTransport
	case ItemCategoryEntertainment:
		return CategoryEntertainment
	case ItemCategoryShopping:
		return CategoryShopping
	case ItemCategoryMedical:
		return CategoryMedical
	case ItemCategoryUtilities:
		return CategoryUtilities
	case ItemCategoryEducation:
		return CategoryEducation
	case ItemCategoryHome:
		return CategoryHomeGarden
	default:
		return CategoryOther
	}
}

// ReceiptItem is a single line item on a receipt. Total is whatever the
// extraction or the user reported; it is never reconciled against
// quantity x price, so mismatches from tips or discounts survive as-is.
type ReceiptItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
	Category string  `json:"category"`
}

// NewItem returns a line item populated with defaults
func NewItem() ReceiptItem {
	return ReceiptItem{
		Quantity: 1,
		Category: ItemCategoryOther,
	}
}

// Receipt is the durable record. Date is a calendar date in ISO form
// (YYYY-MM-DD); CreatedAt and UpdatedAt are assigned by the persistence
// layer, never by the client.
type Receipt struct {
	ID          string        `json:"id"`
	StoreName   string        `json:"storeName"`
	Date        string        `json:"date"`
	TotalAmount float64       `json:"totalAmount"`
	TaxAmount   float64       `json:"taxAmount"`
	Category    string        `json:"category"`
	Items       []ReceiptItem `json:"items"`
	Tags        []string      `json:"tags"`
	Notes       string        `json:"notes"`
	ImageURL    string        `json:"imageUrl"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// OCRStatus is the outcome reported by the extraction collaborator
type OCRStatus string

const (
	OCRPending OCRStatus = "pending"
	OCRSuccess OCRStatus = "success"
	OCRError   OCRStatus = "error"
)

// Draft is a normalized-but-unconfirmed receipt. It has the Receipt shape
// minus server-assigned fields, plus the extraction outcome. Drafts live only
// inside one upload/verify session and are never persisted as-is.
type Draft struct {
	StoreName   string        `json:"storeName"`
	Date        string        `json:"date"`
	TotalAmount float64       `json:"totalAmount"`
	TaxAmount   float64       `json:"taxAmount"`
	Category    string        `json:"category"`
	Items       []ReceiptItem `json:"items"`
	Tags        []string      `json:"tags"`
	Notes       string        `json:"notes"`
	ImageURL    string        `json:"imageUrl"`
	OCRStatus   OCRStatus     `json:"ocrStatus"`
	OCRMessage  string        `json:"ocrMessage,omitempty"`
}

// Clone returns a deep copy of the draft
func (d *Draft) Clone() *Draft {
	c := *d
	c.Items = make([]ReceiptItem, len(d.Items))
	copy(c.Items, d.Items)
	c.Tags = make([]string, len(d.Tags))
	copy(c.Tags, d.Tags)
	return &c
}

// Stats summarizes the persisted receipt collection
type Stats struct {
	TotalReceipts int            `json:"totalReceipts"`
	TotalAmount   float64        `json:"totalAmount"`
	AvgAmount     float64        `json:"avgAmount"`
	Monthly       []MonthlyTotal `json:"monthly"`
}

// MonthlyTotal is one month's spend within Stats
type MonthlyTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}
