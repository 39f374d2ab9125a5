package anki_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/anki"
)

var _ = Describe("Media Manifest Resolver", func() {
	open := func(entries map[string][]byte) *anki.Container {
		c, err := anki.OpenContainer(buildZip(entries))
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("returns an empty mapping when the media entry is absent", func() {
		c := open(map[string][]byte{"collection.anki2": []byte("x")})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestAbsent))
		Expect(m).To(BeEmpty())
	})

	It("prefers plain JSON and never reaches the protobuf decoder", func() {
		c := open(map[string][]byte{"media": []byte(`{"0":"cat.jpg","1":"dog.png"}`)})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestJSON))
		Expect(m).To(HaveKeyWithValue("0", "cat.jpg"))
		Expect(m).To(HaveKeyWithValue("1", "dog.png"))
	})

	It("falls back to decompressed JSON", func() {
		c := open(map[string][]byte{"media": zstdCompress([]byte(`{"0":"cat.jpg"}`))})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestZstdJSON))
		Expect(m).To(HaveKeyWithValue("0", "cat.jpg"))
	})

	It("falls back to the protobuf decoder on raw bytes", func() {
		c := open(map[string][]byte{"media": mediaEntries(mediaEntry("cat.jpg"))})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestProtobuf))
		Expect(m).To(HaveKeyWithValue("0", "cat.jpg"))
	})

	It("falls back to the protobuf decoder on decompressed bytes", func() {
		compressed := zstdCompress(mediaEntries(mediaEntry("cat.jpg"), mediaEntry("dog.png")))
		c := open(map[string][]byte{"media": compressed})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestZstdProtobuf))
		Expect(m).To(HaveLen(2))
	})

	It("degrades to an empty mapping when every strategy fails", func() {
		c := open(map[string][]byte{"media": {0xff, 0xfe, 0xfd}})
		m, strategy := anki.ResolveManifest(c, codecTestLogger())
		Expect(strategy).To(Equal(anki.ManifestUnavailable))
		Expect(m).To(BeEmpty())
	})

	Describe("KeyFor", func() {
		It("reverse-maps original names to archive keys", func() {
			m := anki.MediaMap{"0": "cat.jpg", "7": "dog.png"}
			key, ok := m.KeyFor("dog.png")
			Expect(ok).To(BeTrue())
			Expect(key).To(Equal("7"))

			_, ok = m.KeyFor("missing.gif")
			Expect(ok).To(BeFalse())
		})
	})
})
