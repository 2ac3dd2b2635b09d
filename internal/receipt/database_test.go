package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = &Receipt{
				ID:          "test-id",
				StoreName:   "Whole Foods",
				Date:        "2024-01-15",
				TotalAmount: 25.99,
				TaxAmount:   1.99,
				Category:    CategoryGroceries,
				Items: []ReceiptItem{
					{Name: "milk", Quantity: 1, Price: 3.50, Total: 3.50, Category: ItemCategoryGroceries},
				},
				Tags:      []string{"verified"},
				ImageURL:  "/uploads/test-id_receipt.jpg",
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the receipt to the database", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})

			It("should round-trip the line items", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Items).To(HaveLen(1))
				Expect(saved.Items[0].Name).To(Equal("milk"))
			})
		})
	})

	Describe("GetReceipt", func() {
		var (
			receiptID string
			receipt   *Receipt
			err       error
		)

		JustBeforeEach(func() {
			receipt, err = db.GetReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "test-id"
				testReceipt := &Receipt{
					ID:          "test-id",
					StoreName:   "Whole Foods",
					Date:        "2024-01-15",
					TotalAmount: 25.99,
					CreatedAt:   time.Now(),
					UpdatedAt:   time.Now(),
				}
				Expect(db.SaveReceipt(testReceipt)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct receipt ID", func() {
				Expect(receipt.ID).To(Equal("test-id"))
			})

			It("should return the correct store name", func() {
				Expect(receipt.StoreName).To(Equal("Whole Foods"))
			})

			It("should return the correct total amount", func() {
				Expect(receipt.TotalAmount).To(Equal(25.99))
			})
		})

		When("receipt does not exist", func() {
			BeforeEach(func() {
				receiptID = "nonexistent"
			})

			It("returns a not-found error", func() {
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			receipts []*Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = db.ListReceipts()
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				receipt1 := &Receipt{
					ID:        "id1",
					StoreName: "Store 1",
					CreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
					UpdatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				}
				receipt2 := &Receipt{
					ID:        "id2",
					StoreName: "Store 2",
					CreatedAt: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
					UpdatedAt: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
				}
				Expect(db.SaveReceipt(receipt1)).NotTo(HaveOccurred())
				Expect(db.SaveReceipt(receipt2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all receipts", func() {
				Expect(receipts).To(HaveLen(2))
			})

			It("should return newest receipts first", func() {
				Expect(receipts[0].ID).To(Equal("id2"))
				Expect(receipts[1].ID).To(Equal("id1"))
			})
		})

		When("no receipts exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(receipts).To(BeEmpty())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		var (
			receiptID string
			err       error
		)

		JustBeforeEach(func() {
			err = db.DeleteReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "test-id"
				receipt := &Receipt{
					ID:        "test-id",
					StoreName: "Test",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveReceipt(receipt)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the receipt from the database", func() {
				_, getErr := db.GetReceipt("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("receipt does not exist", func() {
			BeforeEach(func() {
				receiptID = "nonexistent"
			})

			It("returns a not-found error", func() {
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
