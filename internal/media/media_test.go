package media_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/media"
	"github.com/mdcards/mdcards/pkg/logger"
)

var _ = Describe("Media Store", func() {
	var (
		root  string
		store *media.Store
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		log := logger.New(logger.WithOutput(GinkgoWriter), logger.WithFlags(0))
		var err error
		store, err = media.NewStore(root, log)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips stored bytes", func() {
		url, err := store.Save([]byte("image-bytes"), ".png")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix(media.URLPrefix))
		Expect(url).To(HaveSuffix(".png"))

		data, err := store.Read(url)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("image-bytes")))
	})

	It("generates distinct names for identical payloads", func() {
		a, err := store.Save([]byte("same"), ".jpg")
		Expect(err).NotTo(HaveOccurred())
		b, err := store.Save([]byte("same"), ".jpg")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(Equal(b))
	})

	It("normalizes extensions to lower case", func() {
		url, err := store.Save([]byte("x"), ".PNG")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HaveSuffix(".png"))
	})

	It("never reads outside the uploads root", func() {
		secret := filepath.Join(GinkgoT().TempDir(), "secret.txt")
		Expect(os.WriteFile(secret, []byte("hidden"), 0o644)).To(Succeed())

		_, err := store.Read("/uploads/../" + secret)
		Expect(err).To(HaveOccurred())

		_, err = store.Read("../../etc/passwd")
		Expect(err).To(HaveOccurred())
	})

	It("fails for unknown files", func() {
		_, err := store.Read("/uploads/" + strings.Repeat("0", 32) + ".png")
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("extension allow-list",
		func(ext string, allowed bool) {
			Expect(media.AllowedExt(ext)).To(Equal(allowed))
		},
		Entry("jpg", ".jpg", true),
		Entry("jpeg", ".jpeg", true),
		Entry("png uppercase", ".PNG", true),
		Entry("gif", ".gif", true),
		Entry("webp", ".webp", true),
		Entry("svg", ".svg", false),
		Entry("pdf", ".pdf", false),
		Entry("empty", "", false),
	)
})
