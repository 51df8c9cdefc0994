package backend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smalldave/l4lb/backend"
)

var _ = Describe("Backend", func() {
	It("starts healthy with a zeroed error window", func() {
		b := backend.NewBackend("B1", "127.0.0.1", 19301, 1)
		Expect(b.Health().IsHealthy()).To(BeTrue())
		Expect(b.Window().ConsecutiveFailures()).To(Equal(0))
		Expect(b.Window().ConsecutiveSuccesses()).To(Equal(0))
	})

	It("assigns every backend a distinct identity handle", func() {
		a := backend.NewBackend("B1", "127.0.0.1", 19301, 1)
		b := backend.NewBackend("B2", "127.0.0.1", 19302, 1)
		Expect(a.ID).NotTo(Equal(b.ID))
	})

	It("clamps a non-positive weight up to 1", func() {
		Expect(backend.NewBackend("B1", "127.0.0.1", 19301, 0).Weight).To(Equal(1))
		Expect(backend.NewBackend("B1", "127.0.0.1", 19301, -5).Weight).To(Equal(1))
	})

	It("leaves a positive weight untouched", func() {
		Expect(backend.NewBackend("B1", "127.0.0.1", 19301, 7).Weight).To(Equal(7))
	})
})

var _ = Describe("BackendHealth", func() {
	It("is idempotent across repeated marks of the same state", func() {
		h := backend.NewBackendHealth()
		h.MarkHealthy()
		h.MarkHealthy()
		Expect(h.IsHealthy()).To(BeTrue())

		h.MarkUnhealthy()
		h.MarkUnhealthy()
		Expect(h.IsHealthy()).To(BeFalse())
	})

	It("toggles both directions", func() {
		h := backend.NewBackendHealth()
		Expect(h.IsHealthy()).To(BeTrue())
		h.MarkUnhealthy()
		Expect(h.IsHealthy()).To(BeFalse())
		h.MarkHealthy()
		Expect(h.IsHealthy()).To(BeTrue())
	})
})
