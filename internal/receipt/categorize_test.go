package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CategorizeItems", func() {
	var items []ReceiptItem

	JustBeforeEach(func() {
		CategorizeItems(items)
	})

	When("a keyword appears in the item name", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "Organic Whole Milk 2L", Category: ItemCategoryOther},
				{Name: "unleaded gasoline", Category: ItemCategoryOther},
				{Name: "ibuprofen 200mg", Category: ItemCategoryOther},
			}
		})

		It("assigns the matching category", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryGroceries))
			Expect(items[1].Category).To(Equal(ItemCategoryTransport))
			Expect(items[2].Category).To(Equal(ItemCategoryMedical))
		})
	})

	When("the item name is a near-miss of a keyword", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "expresso", Category: ItemCategoryOther},
			}
		})

		It("matches through the fuzzy score", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryDining))
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "zzqx-9000", Category: ItemCategoryOther},
			}
		})

		It("leaves the item as Other", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryOther))
		})
	})

	When("the item name is empty", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "", Category: ItemCategoryOther},
			}
		})

		It("leaves the item as Other", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryOther))
		})
	})

	When("the item already carries a category", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "coffee", Category: ItemCategoryShopping},
			}
		})

		It("does not override it", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryShopping))
		})
	})

	When("the item carries an unknown category", func() {
		BeforeEach(func() {
			items = []ReceiptItem{
				{Name: "coffee", Category: "Nonsense"},
			}
		})

		It("recategorizes it", func() {
			Expect(items[0].Category).To(Equal(ItemCategoryDining))
		})
	})
})

var _ = Describe("InferCategory", func() {
	When("one item category dominates", func() {
		It("maps the majority item category to the receipt category", func() {
			items := []ReceiptItem{
				{Category: ItemCategoryGroceries},
				{Category: ItemCategoryGroceries},
				{Category: ItemCategoryDining},
			}
			Expect(InferCategory(items)).To(Equal(CategoryGroceries))
		})
	})

	When("categories tie", func() {
		It("prefers the earliest item's category", func() {
			items := []ReceiptItem{
				{Category: ItemCategoryDining},
				{Category: ItemCategoryGroceries},
			}
			Expect(InferCategory(items)).To(Equal(CategoryFoodDining))
		})
	})

	When("there are no items", func() {
		It("returns Other", func() {
			Expect(InferCategory(nil)).To(Equal(CategoryOther))
		})
	})

	When("all items are uncategorized", func() {
		It("returns Other", func() {
			items := []ReceiptItem{
				{Category: ItemCategoryOther},
				{Category: ItemCategoryOther},
			}
			Expect(InferCategory(items)).To(Equal(CategoryOther))
		})
	})
})
