package process_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/meridianbank/depositflow/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("type Variables", func() {
	Describe("func Clone()", func() {
		It("copies the map, detached from the original", func() {
			v := Variables{"a": 1, "b": "x"}
			c := v.Clone()

			c["a"] = 2
			Expect(v["a"]).To(Equal(1))
			Expect(cmp.Diff(
				map[string]any{"a": 2, "b": "x"},
				map[string]any(c),
			)).To(BeEmpty())
		})

		It("returns an empty map for a nil receiver", func() {
			var v Variables
			Expect(v.Clone()).NotTo(BeNil())
		})
	})

	Describe("func Merge()", func() {
		It("overwrites existing keys", func() {
			v := Variables{"a": 1, "b": 2}
			v.Merge(Variables{"b": 3, "c": 4})

			Expect(cmp.Diff(
				map[string]any{"a": 1, "b": 3, "c": 4},
				map[string]any(v),
			)).To(BeEmpty())
		})
	})

	Describe("func Pick()", func() {
		It("keeps only the named variables that are set", func() {
			v := Variables{"a": 1, "b": 2}
			p := v.Pick("a", "missing")

			Expect(cmp.Diff(
				map[string]any{"a": 1},
				map[string]any(p),
			)).To(BeEmpty())
		})
	})

	Describe("func Bool()", func() {
		It("understands native and string booleans", func() {
			v := Variables{"t": true, "s": "true", "f": false, "x": "yes"}

			Expect(v.Bool("t")).To(BeTrue())
			Expect(v.Bool("s")).To(BeTrue())
			Expect(v.Bool("f")).To(BeFalse())
			Expect(v.Bool("x")).To(BeFalse())
			Expect(v.Bool("missing")).To(BeFalse())
		})
	})

	Describe("func Int()", func() {
		It("understands native and string integers", func() {
			v := Variables{"n": 3, "s": "4", "f": 5.0, "x": "many"}

			n, ok := v.Int("n")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(3))

			n, ok = v.Int("s")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(4))

			n, ok = v.Int("f")
			Expect(ok).To(BeTrue())
			Expect(n).To(Equal(5))

			_, ok = v.Int("x")
			Expect(ok).To(BeFalse())

			_, ok = v.Int("missing")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func Decimal()", func() {
		It("keeps monetary amounts exact across encodings", func() {
			v := Variables{
				"d": decimal.RequireFromString("20.20"),
				"s": "15.50",
				"n": 7,
			}

			d, ok := v.Decimal("d")
			Expect(ok).To(BeTrue())

			s, ok := v.Decimal("s")
			Expect(ok).To(BeTrue())

			Expect(d.Sub(s).String()).To(Equal("4.7"))

			n, ok := v.Decimal("n")
			Expect(ok).To(BeTrue())
			Expect(n.String()).To(Equal("7"))

			_, ok = v.Decimal("missing")
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("type Error", func() {
	It("round-trips through an error chain", func() {
		err := NewError("<code>", "because %s", "<reason>")

		derr, ok := AsError(err)
		Expect(ok).To(BeTrue())
		Expect(derr.Code).To(Equal("<code>"))
		Expect(derr.Message).To(Equal("because <reason>"))
		Expect(derr.Error()).To(Equal("<code>: because <reason>"))
	})
})
