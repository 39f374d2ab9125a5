package anki_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/anki"
)

// varint encodes v as a base-128 varint.
func varint(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			return append(out, b)
		}
	}
}

// mediaEntry builds one MediaEntry message with name (field 1), size
// (field 2) and sha1 (field 3).
func mediaEntry(name string, extraFields ...[]byte) []byte {
	var entry []byte
	entry = append(entry, 0x0a) // field 1, wire type 2
	entry = append(entry, varint(uint32(len(name)))...)
	entry = append(entry, name...)
	entry = append(entry, 0x10) // field 2, varint size
	entry = append(entry, varint(1234)...)
	entry = append(entry, 0x1a, 0x03, 0xde, 0xad, 0xbf) // field 3, fake sha1
	for _, extra := range extraFields {
		entry = append(entry, extra...)
	}
	return entry
}

// mediaEntries wraps entries into the top-level MediaEntries message.
func mediaEntries(entries ...[]byte) []byte {
	var out []byte
	for _, entry := range entries {
		out = append(out, 0x0a) // field 1, wire type 2
		out = append(out, varint(uint32(len(entry)))...)
		out = append(out, entry...)
	}
	return out
}

var _ = Describe("Protobuf Micro Decoder", func() {
	Describe("ReadUvarint", func() {
		It("decodes single-byte values", func() {
			pos := 0
			v, err := anki.ReadUvarint([]byte{0x05}, &pos)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(5)))
			Expect(pos).To(Equal(1))
		})

		It("decodes multi-byte values", func() {
			pos := 0
			v, err := anki.ReadUvarint(varint(300), &pos)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(300)))
			Expect(pos).To(Equal(2))
		})

		It("fails on truncated input", func() {
			pos := 0
			_, err := anki.ReadUvarint([]byte{0x80, 0x80}, &pos)
			Expect(err).To(MatchError(anki.ErrTruncatedInput))
		})

		It("fails on an empty buffer", func() {
			pos := 0
			_, err := anki.ReadUvarint(nil, &pos)
			Expect(err).To(MatchError(anki.ErrTruncatedInput))
		})
	})

	Describe("SkipField", func() {
		DescribeTable("advances past known wire types",
			func(buf []byte, wireType uint32, wantPos int) {
				pos := 0
				Expect(anki.SkipField(buf, &pos, wireType)).To(Succeed())
				Expect(pos).To(Equal(wantPos))
			},
			Entry("varint", []byte{0xac, 0x02, 0xff}, uint32(0), 2),
			Entry("fixed64", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, uint32(1), 8),
			Entry("length-delimited", append([]byte{0x03}, []byte("abcd")...), uint32(2), 4),
			Entry("fixed32", []byte{1, 2, 3, 4, 5}, uint32(5), 4),
		)

		It("rejects unknown wire types", func() {
			pos := 0
			err := anki.SkipField([]byte{0x00}, &pos, 3)
			Expect(err).To(MatchError(anki.ErrUnknownWireType))
		})

		It("fails when a length-delimited field overruns the buffer", func() {
			pos := 0
			err := anki.SkipField([]byte{0x09, 0x01}, &pos, 2)
			Expect(err).To(MatchError(anki.ErrTruncatedInput))
		})
	})

	Describe("DecodeMediaManifest", func() {
		It("maps entry ordinals to filenames", func() {
			buf := mediaEntries(mediaEntry("cat.jpg"), mediaEntry("dog.png"))
			m := anki.DecodeMediaManifest(buf)
			Expect(m).To(Equal(map[string]string{
				"0": "cat.jpg",
				"1": "dog.png",
			}))
		})

		It("skips unknown fields inside entries", func() {
			// field 7 varint and field 9 length-delimited, both unknown
			extra := append([]byte{0x38}, varint(99)...)
			extra = append(extra, 0x4a, 0x02, 0xaa, 0xbb)
			buf := mediaEntries(mediaEntry("pic.gif", extra))
			m := anki.DecodeMediaManifest(buf)
			Expect(m).To(HaveKeyWithValue("0", "pic.gif"))
		})

		It("returns nil for non-manifest bytes", func() {
			Expect(anki.DecodeMediaManifest([]byte("{\"0\":\"a.png\"}"))).To(BeNil())
		})

		It("returns nil when no entry carries a name", func() {
			entry := append([]byte{0x10}, varint(12)...) // size only
			Expect(anki.DecodeMediaManifest(mediaEntries(entry))).To(BeNil())
		})

		It("returns nil on truncated input", func() {
			buf := mediaEntries(mediaEntry("cat.jpg"))
			Expect(anki.DecodeMediaManifest(buf[:len(buf)-3])).To(BeNil())
		})
	})
})
