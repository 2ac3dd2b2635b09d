package staging_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/finexhq/finex-server/internal/receipt"
	"github.com/finexhq/finex-server/internal/staging"
)

func TestStaging(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Staging Suite")
}

func newDraft() *receipt.Draft {
	return &receipt.Draft{
		StoreName:   "Whole Foods",
		Date:        "2024-01-15",
		TotalAmount: 54.20,
		TaxAmount:   4.20,
		Category:    receipt.CategoryGroceries,
		Items: []receipt.ReceiptItem{
			{Name: "milk", Quantity: 1, Price: 3.50, Total: 3.50, Category: receipt.ItemCategoryGroceries},
			{Name: "bread", Quantity: 2, Price: 2.00, Total: 4.00, Category: receipt.ItemCategoryGroceries},
		},
		Tags:      []string{},
		OCRStatus: receipt.OCRSuccess,
	}
}

var _ = Describe("Store", func() {
	var (
		store *staging.Store
		draft *receipt.Draft
		id    string
	)

	BeforeEach(func() {
		store = staging.NewStore()
		draft = newDraft()
		id = store.Put(draft)
	})

	Describe("Put", func() {
		It("assigns a session id", func() {
			Expect(id).NotTo(BeEmpty())
		})

		It("stages a copy, not the caller's draft", func() {
			draft.StoreName = "mutated"
			entry, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Draft.StoreName).To(Equal("Whole Foods"))
		})

		It("starts the session unedited", func() {
			entry, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Edited).To(BeFalse())
		})
	})

	Describe("Get", func() {
		When("the session does not exist", func() {
			It("returns a not-found error", func() {
				_, err := store.Get("missing")
				Expect(err).To(MatchError(staging.ErrNotFound))
			})
		})
	})

	Describe("List", func() {
		It("returns sessions in creation order", func() {
			second := newDraft()
			second.StoreName = "Shell"
			third := newDraft()
			third.StoreName = "CVS"
			store.Put(second)
			store.Put(third)

			entries := store.List()
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Draft.StoreName).To(Equal("Whole Foods"))
			Expect(entries[1].Draft.StoreName).To(Equal("Shell"))
			Expect(entries[2].Draft.StoreName).To(Equal("CVS"))
		})

		When("the store is empty", func() {
			It("returns an empty list", func() {
				Expect(staging.NewStore().List()).To(BeEmpty())
			})
		})
	})

	Describe("SetField", func() {
		It("replaces the field and marks the session edited", func() {
			Expect(store.SetField(id, "storeName", "Trader Joe's")).To(Succeed())

			entry, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Draft.StoreName).To(Equal("Trader Joe's"))
			Expect(entry.Edited).To(BeTrue())
		})

		It("coerces invalid numeric input to zero", func() {
			Expect(store.SetField(id, "totalAmount", "abc")).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.TotalAmount).To(BeZero())
		})

		It("falls back to Other for an unknown category", func() {
			Expect(store.SetField(id, "category", "Spaceships")).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Category).To(Equal(receipt.CategoryOther))
		})

		It("ignores unknown fields without marking the session edited", func() {
			Expect(store.SetField(id, "bogus", "value")).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.StoreName).To(Equal("Whole Foods"))
			Expect(entry.Edited).To(BeFalse())
		})

		When("the session does not exist", func() {
			It("returns a not-found error", func() {
				Expect(store.SetField("missing", "storeName", "x")).To(MatchError(staging.ErrNotFound))
			})
		})
	})

	Describe("SetItemField", func() {
		It("mutates the addressed item", func() {
			Expect(store.SetItemField(id, 1, "price", 2.50)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items[1].Price).To(Equal(2.50))
			Expect(entry.Draft.Items[0].Price).To(Equal(3.50))
		})

		It("defaults quantity to one when set to zero", func() {
			Expect(store.SetItemField(id, 0, "quantity", 0)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items[0].Quantity).To(Equal(1.0))
		})

		It("ignores an out-of-bounds index without marking the session edited", func() {
			Expect(store.SetItemField(id, 99, "price", 2.50)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items).To(HaveLen(2))
			Expect(entry.Edited).To(BeFalse())
		})

		It("ignores unknown item fields without marking the session edited", func() {
			Expect(store.SetItemField(id, 0, "bogus", "value")).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Edited).To(BeFalse())
		})
	})

	Describe("AddItem", func() {
		It("appends a default item", func() {
			Expect(store.AddItem(id)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items).To(HaveLen(3))
			Expect(entry.Draft.Items[2].Quantity).To(Equal(1.0))
			Expect(entry.Draft.Items[2].Category).To(Equal(receipt.ItemCategoryOther))
		})
	})

	Describe("RemoveItem", func() {
		It("removes the item and shifts later indices down", func() {
			Expect(store.RemoveItem(id, 0)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items).To(HaveLen(1))
			Expect(entry.Draft.Items[0].Name).To(Equal("bread"))
		})

		It("allows removing the last item", func() {
			Expect(store.RemoveItem(id, 0)).To(Succeed())
			Expect(store.RemoveItem(id, 0)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items).To(BeEmpty())
		})

		It("ignores an out-of-bounds index", func() {
			Expect(store.RemoveItem(id, 5)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.Items).To(HaveLen(2))
		})
	})

	Describe("Revert", func() {
		It("restores the last snapshot and clears the edited flag", func() {
			Expect(store.SetField(id, "storeName", "Changed")).To(Succeed())
			Expect(store.RemoveItem(id, 0)).To(Succeed())

			Expect(store.Revert(id)).To(Succeed())

			entry, _ := store.Get(id)
			Expect(entry.Draft.StoreName).To(Equal("Whole Foods"))
			Expect(entry.Draft.Items).To(HaveLen(2))
			Expect(entry.Edited).To(BeFalse())
		})
	})

	Describe("Take", func() {
		It("returns the current working draft", func() {
			Expect(store.SetField(id, "storeName", "Edited Store")).To(Succeed())

			taken, err := store.Take(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(taken.StoreName).To(Equal("Edited Store"))
		})

		It("keeps the session alive for a retry", func() {
			_, err := store.Take(id)
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Get(id)
			Expect(err).NotTo(HaveOccurred())
		})

		When("extraction failed and the draft was never edited", func() {
			BeforeEach(func() {
				failed := newDraft()
				failed.OCRStatus = receipt.OCRError
				failed.OCRMessage = "model timed out"
				id = store.Put(failed)
			})

			It("refuses to hand out the draft", func() {
				_, err := store.Take(id)
				Expect(err).To(MatchError(staging.ErrEditRequired))
			})

			It("allows the draft once any edit was made", func() {
				Expect(store.SetField(id, "storeName", "Fixed")).To(Succeed())

				_, err := store.Take(id)
				Expect(err).NotTo(HaveOccurred())
			})

			It("stays refused after edits that changed nothing", func() {
				Expect(store.SetField(id, "bogus", "value")).To(Succeed())
				Expect(store.SetItemField(id, 99, "price", 1.0)).To(Succeed())
				Expect(store.RemoveItem(id, 99)).To(Succeed())

				_, err := store.Take(id)
				Expect(err).To(MatchError(staging.ErrEditRequired))
			})
		})

		When("the session does not exist", func() {
			It("returns a not-found error", func() {
				_, err := store.Take("missing")
				Expect(err).To(MatchError(staging.ErrNotFound))
			})
		})
	})

	Describe("Discard", func() {
		It("removes the session", func() {
			store.Discard(id)

			_, err := store.Get(id)
			Expect(err).To(MatchError(staging.ErrNotFound))
		})

		It("is a no-op for an unknown session", func() {
			store.Discard("missing")
			Expect(store.Len()).To(Equal(1))
		})
	})

	Describe("expiry", func() {
		It("sweeps expired sessions on read", func() {
			expiring := staging.NewStoreWithTTL(time.Millisecond)
			expID := expiring.Put(newDraft())

			Eventually(func() error {
				_, err := expiring.Get(expID)
				return err
			}).Should(MatchError(staging.ErrNotFound))
		})

		It("keeps unexpired sessions", func() {
			_, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
