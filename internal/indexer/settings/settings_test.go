package settings

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ade-settings-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("should ship builtin panels with settings ids", func() {
		c := Builtin()
		Expect(c.Len()).To(BeNumerically(">=", 10))

		item, ok := c.Lookup("settings:display")
		Expect(ok).To(BeTrue())
		Expect(item.Name).To(Equal("Display settings"))
		Expect(item.Exec).To(Equal("gnome-control-center display"))

		for _, item := range c.Items() {
			Expect(IsSettingsID(item.ID)).To(BeTrue())
		}
	})

	It("should return the builtin catalog when the file is missing", func() {
		c, err := Load(filepath.Join(tmpDir, "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(Builtin().Len()))
	})

	It("should merge file items over the builtin ones", func() {
		path := filepath.Join(tmpDir, "settings.yaml")
		Expect(os.WriteFile(path, []byte(`
settings:
  - id: display
    name: Screens
    exec: kcmshell6 kcm_kscreen
    names:
      de: Bildschirme
  - id: firewall
    name: Firewall
    exec: gufw
  - id: broken
    name: No exec
`), 0644)).To(Succeed())

		c, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(Builtin().Len() + 1))

		display, ok := c.Lookup("settings:display")
		Expect(ok).To(BeTrue())
		Expect(display.Exec).To(Equal("kcmshell6 kcm_kscreen"))
		Expect(display.LocalizedName("de_DE")).To(Equal("Bildschirme"))
		Expect(c.Items()[0].ID).To(Equal("settings:display"))

		_, ok = c.Lookup("settings:firewall")
		Expect(ok).To(BeTrue())
		_, ok = c.Lookup("settings:broken")
		Expect(ok).To(BeFalse())
	})

	It("should replace the builtin catalog when asked", func() {
		path := filepath.Join(tmpDir, "settings.yaml")
		Expect(os.WriteFile(path, []byte("replace: true\nsettings:\n  - id: sound\n    exec: pavucontrol\n"), 0644)).To(Succeed())

		c, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(1))
		Expect(c.Items()[0].Name).To(Equal("sound"))
	})

	It("should report malformed files and keep the builtin catalog", func() {
		path := filepath.Join(tmpDir, "settings.yaml")
		Expect(os.WriteFile(path, []byte("settings: [unclosed"), 0644)).To(Succeed())

		c, err := Load(path)
		Expect(err).To(HaveOccurred())
		Expect(c.Len()).To(Equal(Builtin().Len()))
	})
})
