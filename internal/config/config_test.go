package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/config"
)

var _ = Describe("Config", func() {
	writeConfig := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("loads values from a YAML file", func() {
		cfg, err := config.Load(writeConfig(`
listen_addr: ":8080"
data_dir: /var/lib/mdcards
uploads_dir: /var/lib/mdcards/uploads
verbose: true
import:
  default_deck_name: Fresh Import
upload:
  max_size_bytes: 1048576
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":8080"))
		Expect(cfg.DataDir).To(Equal("/var/lib/mdcards"))
		Expect(cfg.Verbose).To(BeTrue())
		Expect(cfg.Import.DefaultDeckName).To(Equal("Fresh Import"))
		Expect(cfg.Upload.MaxSizeBytes).To(Equal(int64(1048576)))
	})

	It("fills defaults for missing values", func() {
		cfg, err := config.Load(writeConfig(`listen_addr: ":9999"`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":9999"))
		Expect(cfg.DataDir).To(Equal("./data"))
		Expect(cfg.UploadsDir).To(Equal("./uploads"))
		Expect(cfg.Import.DefaultDeckName).To(Equal("Imported Deck"))
		Expect(cfg.Upload.MaxSizeBytes).To(Equal(int64(5 * 1024 * 1024)))
	})

	It("matches Default for an empty file", func() {
		cfg, err := config.Load(writeConfig(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
	})

	It("fails for a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
		Expect(err).To(HaveOccurred())
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("fails for malformed YAML", func() {
		_, err := config.Load(writeConfig("listen_addr: [:bad"))
		Expect(err).To(HaveOccurred())
	})
})
