package desktop

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeDesktopFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}

var _ = Describe("ParseDesktopFile", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ade-desktop-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("should parse the Desktop Entry section", func() {
		path := writeDesktopFile(tmpDir, "calc.desktop", `[Desktop Entry]
Type=Application
Name=Calculator
Name[de]=Rechner
Exec=gnome-calculator %U
Icon=accessories-calculator
Terminal=false
Categories=Utility;Math;

[Desktop Action new]
Name=Ignored
Exec=ignored
`)

		entry, err := ParseDesktopFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Name).To(Equal("Calculator"))
		Expect(entry.Names).To(HaveKeyWithValue("de", "Rechner"))
		Expect(entry.Exec).To(Equal("gnome-calculator %U"))
		Expect(entry.Icon).To(Equal("accessories-calculator"))
		Expect(entry.Terminal).To(BeFalse())
		Expect(entry.Visible()).To(BeTrue())
		Expect(entry.GetLocalizedName("de_DE.UTF-8")).To(Equal("Rechner"))
	})

	It("should fall back to the file name when Name is missing", func() {
		path := writeDesktopFile(tmpDir, "htop.desktop", "[Desktop Entry]\nExec=htop\nTerminal=true\n")

		entry, err := ParseDesktopFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Name).To(Equal("htop"))
		Expect(entry.Terminal).To(BeTrue())
	})

	It("should reject files without name and exec", func() {
		path := writeDesktopFile(tmpDir, "empty.desktop", "[Desktop Entry]\nComment=nothing\n")

		_, err := ParseDesktopFile(path)
		Expect(err).To(HaveOccurred())
	})

	It("should mark hidden entries as not visible", func() {
		for name, content := range map[string]string{
			"nodisplay.desktop": "[Desktop Entry]\nName=A\nExec=a\nNoDisplay=true\n",
			"hidden.desktop":    "[Desktop Entry]\nName=B\nExec=b\nHidden=true\n",
			"link.desktop":      "[Desktop Entry]\nName=C\nExec=c\nType=Link\n",
		} {
			entry, err := ParseDesktopFile(writeDesktopFile(tmpDir, name, content))
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Visible()).To(BeFalse(), name)
		}
	})
})

var _ = Describe("Scan", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ade-desktop-scan-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("should return visible entries in directory then path order", func() {
		user := filepath.Join(tmpDir, "user")
		system := filepath.Join(tmpDir, "system")
		writeDesktopFile(system, "b.desktop", "[Desktop Entry]\nName=Beta\nExec=beta\n")
		writeDesktopFile(system, "a.desktop", "[Desktop Entry]\nName=Alpha\nExec=alpha\n")
		writeDesktopFile(system, "sub/c.desktop", "[Desktop Entry]\nName=Gamma\nExec=gamma\n")
		writeDesktopFile(system, "hidden.desktop", "[Desktop Entry]\nName=Hidden\nExec=h\nNoDisplay=true\n")
		writeDesktopFile(system, "readme.txt", "not a desktop file")
		writeDesktopFile(user, "z.desktop", "[Desktop Entry]\nName=Zeta\nExec=zeta\n")

		entries, err := Scan(context.Background(), []string{user, system, filepath.Join(tmpDir, "missing")}, 2)
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		Expect(names).To(Equal([]string{"Zeta", "Alpha", "Beta", "Gamma"}))
	})

	It("should stop on a cancelled context", func() {
		writeDesktopFile(tmpDir, "a.desktop", "[Desktop Entry]\nName=Alpha\nExec=alpha\n")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Scan(ctx, []string{tmpDir}, 1)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Exec commands", func() {
	It("should strip field codes", func() {
		Expect(CleanExecCommand("firefox %u  --new-window")).To(Equal("firefox --new-window"))
		Expect(CleanExecCommand("echo 100%%")).To(Equal("echo 100%"))
	})

	It("should expand file codes", func() {
		d := &DesktopEntry{Name: "Image Viewer", Exec: `viewer --title %c %f`, Path: "/apps/viewer.desktop"}
		Expect(d.ExpandExecCommand("/tmp/a b.png")).To(Equal([]string{"viewer", "--title", "Image Viewer", "/tmp/a b.png"}))
	})

	It("should drop file codes without files", func() {
		d := &DesktopEntry{Name: "Files", Exec: "nautilus --new-window %U %d", Icon: "folder", Path: "/apps/files.desktop"}
		Expect(d.ExpandExecCommand()).To(Equal([]string{"nautilus", "--new-window"}))
	})

	It("should expand the icon and desktop file codes", func() {
		d := &DesktopEntry{Name: "Files", Exec: `files %i --desktop-file=%k 100%%`, Icon: "folder", Path: "/apps/files.desktop"}
		Expect(d.ExpandExecCommand()).To(Equal([]string{"files", "--icon", "folder", "--desktop-file=/apps/files.desktop", "100%"}))
	})

	It("should report an unbalanced quote", func() {
		d := &DesktopEntry{Exec: `sh -c "echo`, Path: "/apps/bad.desktop"}
		_, err := d.ExpandExecCommand()
		Expect(err).To(MatchError(ContainSubstring("/apps/bad.desktop")))
	})
})
