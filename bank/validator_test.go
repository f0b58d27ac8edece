package bank_test

import (
	"context"
	"time"

	. "github.com/meridianbank/depositflow/bank"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Validator", func() {
	var (
		ctx       context.Context
		repo      *StaticRepository
		validator *Validator
	)

	client := func(id string) Client {
		c, ok, err := repo.ClientByID(ctx, id)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewStaticRepository()
		validator = &Validator{Repository: repo}
	})

	Describe("func IsWantedByPolice()", func() {
		It("flags a client on the wanted list", func() {
			wanted, err := validator.IsWantedByPolice(ctx, client("4"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(wanted).To(BeTrue())
		})

		It("does not flag other clients", func() {
			wanted, err := validator.IsWantedByPolice(ctx, client("1"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(wanted).To(BeFalse())
		})

		It("matches on identity, not on name alone", func() {
			impostor := client("4")
			impostor.Passport.IdenticalNumber = "<other>"

			wanted, err := validator.IsWantedByPolice(ctx, impostor)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(wanted).To(BeFalse())
		})
	})

	Describe("func IsBlacklisted()", func() {
		It("flags a client on the black list", func() {
			listed, err := validator.IsBlacklisted(ctx, client("4"))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(listed).To(BeTrue())
		})
	})

	Describe("func IsPassportValid()", func() {
		It("accepts a passport within its validity window", func() {
			validator.Now = func() time.Time {
				return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			}

			Expect(validator.IsPassportValid(client("1"))).To(BeTrue())
		})

		It("rejects an expired passport", func() {
			validator.Now = func() time.Time {
				return time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC)
			}

			Expect(validator.IsPassportValid(client("1"))).To(BeFalse())
		})

		It("rejects a passport that is not yet valid", func() {
			validator.Now = func() time.Time {
				return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			}

			Expect(validator.IsPassportValid(client("1"))).To(BeFalse())
		})

		It("rejects a client without a passport", func() {
			Expect(validator.IsPassportValid(Client{})).To(BeFalse())
		})
	})
})
