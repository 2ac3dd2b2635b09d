package scanning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finexhq/finex-server/internal/receipt"
)

// ParseResponse extracts the JSON object from an LLM response and decodes it
// into a RawResult. Models wrap output in markdown fences or prose often
// enough that we locate the outermost braces instead of trusting the text.
func ParseResponse(text string) (RawResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw RawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return raw, nil
}

// Normalize maps an arbitrary extraction result into a well-typed draft.
// It is a total function: every field gets a safe default when missing or
// wrongly typed, and it never fails, even when the extraction backend
// reported an error. The error is carried only in OCRStatus/OCRMessage so
// the caller can always render an editable form.
func Normalize(raw RawResult, status receipt.OCRStatus, message string) *receipt.Draft {
	draft := &receipt.Draft{
		StoreName:   AsString(raw["storeName"]),
		Date:        normalizeDate(AsString(raw["date"])),
		TotalAmount: AsAmount(raw["totalAmount"]),
		TaxAmount:   AsAmount(raw["taxAmount"]),
		Category:    receipt.CategoryOther,
		Items:       normalizeItems(raw["items"]),
		Tags:        []string{},
		Notes:       AsString(raw["notes"]),
		ImageURL:    AsString(raw["imageUrl"]),
		OCRStatus:   status,
		OCRMessage:  message,
	}

	if cat := AsString(raw["category"]); receipt.ValidCategory(cat) {
		draft.Category = cat
	}

	receipt.CategorizeItems(draft.Items)

	return draft
}

// normalizeDate coerces an extracted date string to ISO form (YYYY-MM-DD),
// falling back to today's date when nothing parseable was found
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().Format("2006-01-02")
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}

	return time.Now().Format("2006-01-02")
}

// normalizeItems coerces the extracted items value into a line-item slice.
// A missing or malformed items field yields an empty slice, never nil.
func normalizeItems(v any) []receipt.ReceiptItem {
	items := []receipt.ReceiptItem{}

	list, ok := v.([]any)
	if !ok {
		return items
	}

	for _, entry := range list {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		item := receipt.NewItem()
		item.Name = strings.TrimSpace(AsString(fields["name"]))
		if qty := AsAmount(fields["quantity"]); qty > 0 {
			item.Quantity = qty
		}
		item.Price = AsAmount(fields["price"])
		item.Total = AsAmount(fields["total"])
		if cat := AsString(fields["category"]); receipt.ValidItemCategory(cat) {
			item.Category = cat
		}
		items = append(items, item)
	}

	return items
}

// AsString coerces a decoded JSON value to a string, returning "" for
// anything that is not usefully textual
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// AsAmount coerces a decoded JSON value to a non-negative amount. Invalid
// numeric input becomes 0 rather than an error, which keeps every draft
// submittable.
func AsAmount(v any) float64 {
	var amount float64
	switch n := v.(type) {
	case float64:
		amount = n
	case int:
		amount = float64(n)
	case json.Number:
		amount, _ = n.Float64()
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		cleaned = strings.TrimPrefix(cleaned, "$")
		amount, _ = strconv.ParseFloat(cleaned, 64)
	}
	if amount < 0 {
		return 0
	}
	return amount
}
