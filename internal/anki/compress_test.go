package anki_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/anki"
)

var _ = Describe("Compression Adapter", func() {
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}

	Describe("LooksCompressed", func() {
		It("recognizes the zstd frame magic", func() {
			Expect(anki.LooksCompressed(append(magic, 0x00, 0x01))).To(BeTrue())
		})

		It("recognizes real encoder output", func() {
			Expect(anki.LooksCompressed(zstdCompress([]byte("hello")))).To(BeTrue())
		})

		It("rejects a buffer one byte short of the magic", func() {
			Expect(anki.LooksCompressed(magic[:3])).To(BeFalse())
		})

		It("rejects a buffer with one differing byte", func() {
			almost := []byte{0x28, 0xb5, 0x2f, 0xfe}
			Expect(anki.LooksCompressed(almost)).To(BeFalse())
		})

		It("rejects an empty buffer", func() {
			Expect(anki.LooksCompressed(nil)).To(BeFalse())
		})
	})

	Describe("Decompress", func() {
		It("round-trips a compressed payload", func() {
			payload := []byte("the collection database")
			out, err := anki.Decompress(zstdCompress(payload))
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(payload))
		})

		It("fails on a corrupt frame", func() {
			corrupt := append(append([]byte{}, magic...), 0xff, 0xff, 0xff)
			_, err := anki.Decompress(corrupt)
			Expect(err).To(HaveOccurred())
		})
	})
})
