package receipt

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Receipt", func() {
	var r *Receipt

	BeforeEach(func() {
		r = &Receipt{ID: 3, Vendor: "Acme", Date: "2024-01-01", Amount: 12.5, Filename: "r.pdf"}
	})

	It("should render the searchable values without field names", func() {
		Expect(r.String()).To(Equal("3 Acme 2024-01-01 12.5  r.pdf"))
	})

	It("should include the category when set", func() {
		category := "travel"
		r.Category = &category
		Expect(r.String()).To(Equal("3 Acme 2024-01-01 12.5 travel r.pdf"))
	})

	Describe("NeedsReview", func() {
		It("should be false for extracted fields", func() {
			Expect(r.NeedsReview()).To(BeFalse())
		})

		It("should be true for an unknown vendor with no amount", func() {
			r.Vendor = "Unknown Vendor"
			r.Amount = 0
			Expect(r.NeedsReview()).To(BeTrue())
		})

		It("should be false for an unknown vendor with an amount", func() {
			r.Vendor = "Unknown Vendor"
			Expect(r.NeedsReview()).To(BeFalse())
		})
	})

	It("should emit needs_review and a null category in JSON", func() {
		data, err := json.Marshal(r)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("needs_review", false))
		Expect(decoded).To(HaveKeyWithValue("category", BeNil()))
		Expect(decoded).To(HaveKeyWithValue("amount", 12.5))
	})
})
