package indexer

import (
	"strings"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func names(entries []app.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

var _ = ginkgo.Describe("Manager", func() {
	var m *Manager

	ginkgo.BeforeEach(func() {
		m = NewManager()
	})

	ginkgo.Describe("Add", func() {
		ginkgo.It("should keep the first entry for a canonical id", func() {
			gomega.Expect(m.Add(app.New("App1", "p1", 0, 3))).To(gomega.BeTrue())
			gomega.Expect(m.Add(app.New("App2", "p1", 1, 5))).To(gomega.BeFalse())

			gomega.Expect(m.Len()).To(gomega.Equal(1))
			gomega.Expect(m.Entries()[0].Name).To(gomega.Equal("App1"))
			gomega.Expect(m.Entries()[0].Usage).To(gomega.Equal(uint64(3)))
		})

		ginkgo.It("should keep the first entry for a name ignoring case", func() {
			gomega.Expect(m.Add(app.New("Firefox", "/usr/share/applications/firefox.desktop", 0, 0))).To(gomega.BeTrue())
			gomega.Expect(m.Add(app.New("firefox", "/usr/bin/firefox", 0, 9))).To(gomega.BeFalse())

			gomega.Expect(m.Entries()).To(gomega.HaveLen(1))
			gomega.Expect(m.Entries()[0].ID).To(gomega.Equal("/usr/share/applications/firefox.desktop"))
		})

		ginkgo.It("should accept entries that differ in both keys", func() {
			gomega.Expect(m.Add(app.New("vim", "/usr/bin/vim", 0, 0))).To(gomega.BeTrue())
			gomega.Expect(m.Add(app.New("nvim", "/usr/bin/nvim", 0, 0))).To(gomega.BeTrue())
			gomega.Expect(m.Len()).To(gomega.Equal(2))
		})
	})

	ginkgo.Describe("AddUnchecked", func() {
		ginkgo.It("should store identical entries twice", func() {
			e := app.New("vim", "/usr/bin/vim", 0, 1)
			m.AddUnchecked(e)
			m.AddUnchecked(e)
			gomega.Expect(m.Entries()).To(gomega.Equal([]app.Entry{e, e}))
		})

		ginkgo.It("should make later checked inserts see the keys", func() {
			m.AddUnchecked(app.New("vim", "/usr/bin/vim", 0, 1))
			gomega.Expect(m.Add(app.New("VIM", "/opt/bin/vim", 0, 0))).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("Clear", func() {
		ginkgo.It("should drop entries, view and keys", func() {
			m.Add(app.New("vim", "/usr/bin/vim", 0, 0))
			m.Filter("")
			m.Clear()

			gomega.Expect(m.Entries()).To(gomega.BeEmpty())
			gomega.Expect(m.Filtered()).To(gomega.BeEmpty())
			gomega.Expect(m.Add(app.New("vim", "/usr/bin/vim", 0, 0))).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("SortByUsage", func() {
		ginkgo.It("should order by usage then name ignoring case", func() {
			for _, e := range []app.Entry{
				app.New("zsh", "/bin/zsh", 0, 2),
				app.New("bash", "/bin/bash", 0, 7),
				app.New("Alacritty", "/usr/bin/alacritty", 0, 2),
				app.New("awk", "/usr/bin/awk", 0, 0),
				app.New("btop", "/usr/bin/btop", 0, 2),
			} {
				m.Add(e)
			}
			m.SortByUsage()

			gomega.Expect(names(m.Entries())).To(gomega.Equal([]string{"bash", "Alacritty", "btop", "zsh", "awk"}))

			entries := m.Entries()
			for i := 0; i+1 < len(entries); i++ {
				a, b := entries[i], entries[i+1]
				gomega.Expect(a.Usage).To(gomega.BeNumerically(">=", b.Usage))
				if a.Usage == b.Usage {
					gomega.Expect(strings.ToLower(a.Name) <= strings.ToLower(b.Name)).To(gomega.BeTrue())
				}
			}
		})

		ginkgo.It("should keep insertion order for equal keys", func() {
			m.AddUnchecked(app.New("same", "/a", 0, 1))
			m.AddUnchecked(app.New("same", "/b", 0, 1))
			m.SortByUsage()
			gomega.Expect(m.Entries()[0].ID).To(gomega.Equal("/a"))
			gomega.Expect(m.Entries()[1].ID).To(gomega.Equal("/b"))
		})
	})

	ginkgo.Describe("Filter", func() {
		ginkgo.BeforeEach(func() {
			m.Add(app.New("Calculator", `c:\calc.exe`, 0, 3))
			m.Add(app.New("Calendar", `c:\cal.exe`, 1, 5))
			m.Add(app.New("Notepad", `c:\note.exe`, 2, 1))
		})

		ginkgo.It("should select everything in storage order for an empty search", func() {
			gomega.Expect(m.Filter("")).To(gomega.Equal(3))
			gomega.Expect(m.Filtered()).To(gomega.Equal([]int{0, 1, 2}))
		})

		ginkgo.It("should rank prefix matches and exclude non-matches", func() {
			gomega.Expect(m.Filter("cal")).To(gomega.Equal(2))
			gomega.Expect(m.Filtered()).To(gomega.Equal([]int{0, 1}))

			e, ok := m.FilteredEntry(0)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(e.Name).To(gomega.Equal("Calculator"))
		})

		ginkgo.It("should match case-insensitively", func() {
			gomega.Expect(m.Filter("NOTE")).To(gomega.Equal(1))
			gomega.Expect(m.Filtered()).To(gomega.Equal([]int{2}))
		})

		ginkgo.It("should return no rows when nothing matches", func() {
			gomega.Expect(m.Filter("xyz")).To(gomega.BeZero())
			_, ok := m.FilteredEntry(0)
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("should follow the storage order produced by SortByUsage", func() {
			m.SortByUsage()
			m.Filter("")
			gomega.Expect(names(m.Entries())).To(gomega.Equal([]string{"Calendar", "Calculator", "Notepad"}))
			gomega.Expect(m.Filtered()).To(gomega.Equal([]int{0, 1, 2}))
		})
	})

	ginkgo.Describe("IncrementUsage", func() {
		ginkgo.BeforeEach(func() {
			m.Add(app.New("a", "/a", 0, 1))
			m.Add(app.New("b", "/b", 0, 4))
		})

		ginkgo.It("should add exactly one to the addressed entry", func() {
			m.IncrementUsage(0)
			gomega.Expect(m.Entries()[0].Usage).To(gomega.Equal(uint64(2)))
			gomega.Expect(m.Entries()[1].Usage).To(gomega.Equal(uint64(4)))
		})

		ginkgo.It("should ignore out of range indices", func() {
			m.IncrementUsage(-1)
			m.IncrementUsage(2)
			gomega.Expect(m.Entries()[0].Usage).To(gomega.Equal(uint64(1)))
			gomega.Expect(m.Entries()[1].Usage).To(gomega.Equal(uint64(4)))
		})
	})

	ginkgo.Describe("accessors", func() {
		ginkgo.It("should map filtered positions to storage indices", func() {
			m.Add(app.New("alpha", "/alpha", 0, 0))
			m.Add(app.New("beta", "/beta", 0, 0))
			m.Filter("bet")

			i, ok := m.StorageIndex(0)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(i).To(gomega.Equal(1))

			_, ok = m.StorageIndex(1)
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("should look up entries by id", func() {
			m.Add(app.New("alpha", "/alpha", 0, 0))
			i, ok := m.Lookup("/alpha")
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(i).To(gomega.Equal(0))

			_, ok = m.Lookup("/missing")
			gomega.Expect(ok).To(gomega.BeFalse())
		})
	})
})
