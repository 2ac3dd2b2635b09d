package receipt

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzyMatchThreshold is the minimum similarity score for a keyword match
const fuzzyMatchThreshold = 0.65

// itemKeywords maps item-level categories to the keywords that suggest them.
// Trimmed from a larger merchant/item corpus; substring matches dominate in
// practice so breadth matters more than precision here.
var itemKeywords = map[string][]string{
	ItemCategoryDining: {
		"coffee", "espresso", "latte", "cappuccino", "americano", "mocha",
		"tea", "smoothie", "milkshake", "juice", "soda", "beer", "wine",
		"burger", "pizza", "pasta", "sandwich", "wrap", "taco", "burrito",
		"salad", "soup", "steak", "chicken", "noodles", "ramen", "sushi",
		"curry", "pancake", "waffle", "bacon", "toast", "bagel", "croissant",
		"donut", "cake", "pie", "cookie", "ice cream", "dessert", "muffin",
		"restaurant", "cafe", "diner", "bistro", "bar", "pub", "grill",
		"pizzeria", "bakery", "meal", "takeout", "lunch", "dinner", "breakfast",
	},
	ItemCategoryGroceries: {
		"apple", "banana", "orange", "lemon", "grape", "strawberry", "cherry",
		"tomato", "onion", "garlic", "carrot", "pepper", "cucumber", "lettuce",
		"spinach", "broccoli", "potato", "mushroom", "milk", "cheese", "yogurt",
		"butter", "cream", "eggs", "egg", "beef", "pork", "turkey", "salmon",
		"tuna", "bread", "rice", "cereal", "oats", "flour", "sugar", "salt",
		"oil", "vinegar", "sauce", "ketchup", "mustard", "honey", "jam",
		"nuts", "almonds", "canned", "frozen", "lentils", "grocery",
		"supermarket", "market",
	},
	ItemCategoryTransport: {
		"gas", "gasoline", "fuel", "petrol", "diesel", "pump", "uber", "lyft",
		"taxi", "transit", "bus", "train", "metro", "subway", "parking",
		"toll", "car wash", "oil change", "tire", "car rental", "shuttle",
	},
	ItemCategoryEntertainment: {
		"movie", "cinema", "theater", "ticket", "concert", "music", "game",
		"gaming", "sports", "gym", "fitness", "museum", "hotel", "resort",
		"streaming", "netflix", "spotify", "subscription", "hobby",
	},
	ItemCategoryShopping: {
		"store", "mall", "shop", "retail", "boutique", "outlet", "clothing",
		"shirt", "pants", "jeans", "dress", "jacket", "sweater", "hat",
		"socks", "shoes", "sneakers", "boots", "belt", "bag", "backpack",
		"wallet", "watch", "jewelry", "sunglasses", "makeup", "cosmetics",
		"perfume", "skincare", "lotion",
	},
	ItemCategoryMedical: {
		"pharmacy", "prescription", "medicine", "medication", "vitamin",
		"supplement", "doctor", "clinic", "hospital", "dental", "bandage",
		"aspirin", "ibuprofen", "first aid", "copay",
	},
	ItemCategoryUtilities: {
		"electric", "electricity", "water bill", "internet", "wifi", "phone",
		"mobile", "cable", "utility", "heating", "sewer", "trash",
	},
	ItemCategoryEducation: {
		"book", "textbook", "notebook", "pen", "pencil", "tuition", "course",
		"class", "school", "college", "university", "stationery", "workshop",
	},
	ItemCategoryHome: {
		"furniture", "sofa", "chair", "table", "lamp", "curtain", "rug",
		"bedding", "pillow", "towel", "kitchenware", "cookware", "detergent",
		"cleaner", "soap", "paint", "tools", "hammer", "screwdriver", "garden",
		"plant", "soil", "hardware",
	},
}

// CategorizeItems assigns an item-level category to each item that does not
// already carry one, using keyword matching against the item name. Items the
// user (or the extraction) already categorized are left alone; unmatched
// items stay "Other".
func CategorizeItems(items []ReceiptItem) {
	for i := range items {
		if ValidItemCategory(items[i].Category) && items[i].Category != ItemCategoryOther {
			continue
		}
		items[i].Category = categorizeName(items[i].Name)
	}
}

// categorizeName finds the best-matching category for an item name
func categorizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ItemCategoryOther
	}

	bestCategory := ItemCategoryOther
	bestScore := 0.0

	for _, category := range ItemCategories {
		for _, keyword := range itemKeywords[category] {
			score := matchScore(name, keyword)
			if score > bestScore && score > fuzzyMatchThreshold {
				bestScore = score
				bestCategory = category
				if score > 0.95 {
					break
				}
			}
		}
		if bestScore > 0.95 {
			break
		}
	}

	return bestCategory
}

// matchScore scores how well a keyword matches an item name. Exact substring
// containment wins outright; otherwise fall back to an edit-distance ratio.
func matchScore(name, keyword string) float64 {
	if strings.Contains(name, keyword) {
		return 1.0
	}
	if strings.Contains(keyword, name) {
		return 0.95
	}

	longest := len(name)
	if len(keyword) > longest {
		longest = len(keyword)
	}
	if longest == 0 {
		return 0
	}

	dist := levenshtein.ComputeDistance(name, keyword)
	return 1.0 - float64(dist)/float64(longest)
}

// InferCategory derives the receipt-level category from the most common
// item-level category, breaking ties toward the earliest item
func InferCategory(items []ReceiptItem) string {
	if len(items) == 0 {
		return CategoryOther
	}

	counts := make(map[string]int)
	order := []string{}
	for _, item := range items {
		if _, seen := counts[item.Category]; !seen {
			order = append(order, item.Category)
		}
		counts[item.Category]++
	}

	best := order[0]
	for _, cat := range order[1:] {
		if counts[cat] > counts[best] {
			best = cat
		}
	}

	return CategoryForItemCategory(best)
}
