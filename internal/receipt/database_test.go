package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newTestReceipt(filename, vendor, date string, amount float64) *Receipt {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return &Receipt{
		Vendor:      vendor,
		Date:        date,
		Amount:      amount,
		Filename:    filename,
		StoredPath:  "key_" + filename,
		ContentType: "text/plain",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// describeStore runs the behaviour every DB implementation shares
func describeStore(open func(dir string) (DB, error)) {
	var db DB

	BeforeEach(func() {
		var err error
		db, err = open(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("InsertReceipt", func() {
		It("should assign increasing ids", func() {
			first := newTestReceipt("a.txt", "Acme", "2024-01-01", 1)
			second := newTestReceipt("b.txt", "Bakery", "2024-01-02", 2)
			Expect(db.InsertReceipt(first)).To(Succeed())
			Expect(db.InsertReceipt(second)).To(Succeed())
			Expect(first.ID).To(Equal(int64(1)))
			Expect(second.ID).To(Equal(int64(2)))
		})

		It("should round-trip every field", func() {
			category := "office"
			r := newTestReceipt("a.txt", "Acme & Co", "2024-13-01", 42.5)
			r.Category = &category
			Expect(db.InsertReceipt(r)).To(Succeed())

			saved, err := db.GetReceipt(r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Vendor).To(Equal("Acme & Co"))
			Expect(saved.Date).To(Equal("2024-13-01"))
			Expect(saved.Amount).To(Equal(42.5))
			Expect(*saved.Category).To(Equal("office"))
			Expect(saved.Filename).To(Equal("a.txt"))
			Expect(saved.StoredPath).To(Equal("key_a.txt"))
			Expect(saved.ContentType).To(Equal("text/plain"))
			Expect(saved.CreatedAt.Equal(r.CreatedAt)).To(BeTrue())
		})

		It("should keep a missing category as nil", func() {
			r := newTestReceipt("a.txt", "Acme", "2024-01-01", 1)
			Expect(db.InsertReceipt(r)).To(Succeed())
			saved, err := db.GetReceipt(r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Category).To(BeNil())
		})
	})

	Describe("GetReceipt", func() {
		It("returns ErrNotFound for an unknown id", func() {
			_, err := db.GetReceipt(7)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListReceipts", func() {
		It("should return an empty list for an empty store", func() {
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})

		It("should return receipts in insertion order", func() {
			for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
				Expect(db.InsertReceipt(newTestReceipt(name, "V "+name, "2024-01-01", 1))).To(Succeed())
			}
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(3))
			Expect(receipts[0].Filename).To(Equal("c.txt"))
			Expect(receipts[2].Filename).To(Equal("b.txt"))
		})
	})

	Describe("FindByFilename", func() {
		BeforeEach(func() {
			Expect(db.InsertReceipt(newTestReceipt("a.txt", "Acme", "2024-01-01", 1))).To(Succeed())
		})

		It("should find an exact match", func() {
			found, err := db.FindByFilename("a.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("should not match a different case", func() {
			found, err := db.FindByFilename("A.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty())
		})
	})

	Describe("FindByContent", func() {
		BeforeEach(func() {
			Expect(db.InsertReceipt(newTestReceipt("a.txt", "Acme", "2024-01-01", 12.5))).To(Succeed())
		})

		It("should find the exact triple", func() {
			found, err := db.FindByContent("Acme", "2024-01-01", 12.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("should not match when one field differs", func() {
			found, err := db.FindByContent("Acme", "2024-01-01", 12.51)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeEmpty())
		})
	})

	Describe("UpdateReceipt", func() {
		var r *Receipt

		BeforeEach(func() {
			r = newTestReceipt("a.txt", "Unknown Vendor", "2023-01-01", 0)
			Expect(db.InsertReceipt(r)).To(Succeed())
		})

		It("should persist the change", func() {
			updated, err := db.UpdateReceipt(r.ID, func(rec *Receipt) {
				rec.Vendor = "Bakery"
				rec.Amount = 3.2
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.ID).To(Equal(r.ID))
			Expect(updated.Vendor).To(Equal("Bakery"))

			saved, err := db.GetReceipt(r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Vendor).To(Equal("Bakery"))
			Expect(saved.Amount).To(Equal(3.2))
			Expect(saved.Filename).To(Equal("a.txt"))
		})

		It("returns ErrNotFound and changes nothing for an unknown id", func() {
			called := false
			_, err := db.UpdateReceipt(r.ID+1, func(*Receipt) { called = true })
			Expect(err).To(MatchError(ErrNotFound))
			Expect(called).To(BeFalse())

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
		})
	})
}

var _ = Describe("BoltDB", func() {
	describeStore(func(dir string) (DB, error) {
		return NewBoltDB(filepath.Join(dir, "test.db"))
	})

	It("should keep records across reopen", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "reopen.db")
		db, err := NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.InsertReceipt(newTestReceipt("a.txt", "Acme", "2024-01-01", 1))).To(Succeed())
		Expect(db.Close()).To(Succeed())

		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		next := newTestReceipt("b.txt", "Bakery", "2024-01-02", 2)
		Expect(db.InsertReceipt(next)).To(Succeed())
		Expect(next.ID).To(Equal(int64(2)))
	})
})

var _ = Describe("SQLiteDB", func() {
	describeStore(func(dir string) (DB, error) {
		return NewSQLiteDB(filepath.Join(dir, "test.sqlite"))
	})

	It("should reject a second receipt with the same filename", func() {
		db, err := NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "unique.sqlite"))
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		Expect(db.InsertReceipt(newTestReceipt("a.txt", "Acme", "2024-01-01", 1))).To(Succeed())
		Expect(db.InsertReceipt(newTestReceipt("a.txt", "Other", "2024-01-02", 2))).NotTo(Succeed())
	})
})
