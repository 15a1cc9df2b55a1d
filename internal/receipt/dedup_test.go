package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Admit", func() {
	var candidate *Receipt

	BeforeEach(func() {
		candidate = &Receipt{Filename: "r.txt", Vendor: "Acme", Date: "2024-01-01", Amount: 5}
	})

	It("should admit a receipt with no matches", func() {
		Expect(Admit(candidate, nil, nil)).To(Succeed())
	})

	It("should reject a repeated filename", func() {
		existing := []*Receipt{{ID: 1, Filename: "r.txt"}}
		Expect(Admit(candidate, existing, nil)).To(MatchError(ErrDuplicateFilename))
	})

	It("should reject a repeated vendor, date and amount", func() {
		existing := []*Receipt{{ID: 1, Filename: "other.txt", Vendor: "Acme", Date: "2024-01-01", Amount: 5}}
		Expect(Admit(candidate, nil, existing)).To(MatchError(ErrDuplicateContent))
	})

	It("should report the filename when both match", func() {
		same := []*Receipt{{ID: 1, Filename: "r.txt", Vendor: "Acme", Date: "2024-01-01", Amount: 5}}
		Expect(Admit(candidate, same, same)).To(MatchError(ErrDuplicateFilename))
	})

	It("should admit when only two of the three fields match", func() {
		existing := []*Receipt{{ID: 1, Filename: "other.txt", Vendor: "Acme", Date: "2024-01-01", Amount: 6}}
		Expect(Admit(candidate, nil, existing)).To(Succeed())
	})
})
