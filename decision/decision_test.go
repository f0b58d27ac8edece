package decision_test

import (
	"context"

	. "github.com/meridianbank/depositflow/decision"
	"github.com/meridianbank/depositflow/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type TableEvaluator", func() {
	var (
		ctx       context.Context
		evaluator *TableEvaluator
	)

	BeforeEach(func() {
		ctx = context.Background()
		evaluator = NewTableEvaluator(Table{
			Name: "<table>",
			Rules: []Rule{
				{
					Matches: func(v process.Variables) bool {
						return v.Bool("first")
					},
					Outputs: process.Variables{"hit": "first"},
				},
				{
					Matches: func(v process.Variables) bool {
						return v.Bool("second")
					},
					Outputs: process.Variables{"hit": "second"},
				},
			},
		})
	})

	Describe("func Evaluate()", func() {
		It("returns the outputs of the first matching rule", func() {
			out, err := evaluator.Evaluate(ctx, "<table>", process.Variables{
				"first":  true,
				"second": true,
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(out).To(Equal(process.Variables{"hit": "first"}))
		})

		It("returns a copy of the outputs", func() {
			out, err := evaluator.Evaluate(ctx, "<table>", process.Variables{"second": true})
			Expect(err).ShouldNot(HaveOccurred())

			out["hit"] = "<mutated>"

			again, err := evaluator.Evaluate(ctx, "<table>", process.Variables{"second": true})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(again["hit"]).To(Equal("second"))
		})

		It("fails when no rule matches", func() {
			_, err := evaluator.Evaluate(ctx, "<table>", process.Variables{})
			Expect(err).To(MatchError(ErrNoMatchingRule))
		})

		It("fails for an unknown table", func() {
			_, err := evaluator.Evaluate(ctx, "<other>", process.Variables{})
			Expect(err).To(MatchError(ErrUnknownTable))
		})
	})
})
