package indexer

import (
	"math"
	"sync"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func newManagerOf(entries ...app.Entry) *Manager {
	m := NewManager()
	for _, e := range entries {
		m.Add(e)
	}
	m.SortByUsage()
	m.Filter("")
	return m
}

var _ = ginkgo.Describe("Index", func() {
	var x *Index

	ginkgo.BeforeEach(func() {
		x = NewIndex()
		x.Swap(newManagerOf(
			app.New("Firefox", "/apps/firefox.desktop", 0, 5),
			app.New("Files", "/apps/files.desktop", 0, 2),
			app.New("htop", "/usr/bin/htop", 0, 0),
		))
	})

	ginkgo.Describe("Swap", func() {
		ginkgo.It("should bump the generation and keep the search", func() {
			gen := x.Generation()
			x.Filter("fi")

			x.Swap(newManagerOf(app.New("Fish", "/usr/bin/fish", 0, 0), app.New("vim", "/usr/bin/vim", 0, 0)))
			gomega.Expect(x.Generation()).To(gomega.Equal(gen + 1))
			gomega.Expect(x.Search()).To(gomega.Equal("fi"))

			rows, total := x.Page(0, 10)
			gomega.Expect(total).To(gomega.Equal(1))
			gomega.Expect(rows[0].Entry.Name).To(gomega.Equal("Fish"))
		})
	})

	ginkgo.Describe("Page", func() {
		ginkgo.It("should page through the filtered view", func() {
			rows, total := x.Page(1, 1)
			gomega.Expect(total).To(gomega.Equal(3))
			gomega.Expect(rows).To(gomega.Equal([]Row{{Pos: 1, Entry: app.New("Files", "/apps/files.desktop", 0, 2)}}))
		})

		ginkgo.It("should clamp the last page", func() {
			rows, total := x.Page(2, 10)
			gomega.Expect(total).To(gomega.Equal(3))
			gomega.Expect(rows).To(gomega.HaveLen(1))
			gomega.Expect(rows[0].Pos).To(gomega.Equal(2))
		})

		ginkgo.It("should return no rows past the end", func() {
			rows, total := x.Page(3, 10)
			gomega.Expect(rows).To(gomega.BeEmpty())
			gomega.Expect(total).To(gomega.Equal(3))
		})

		ginkgo.It("should clamp a limit that would overflow the offset", func() {
			var rows []Row
			var total int
			gomega.Expect(func() { rows, total = x.Page(1, math.MaxInt) }).NotTo(gomega.Panic())
			gomega.Expect(total).To(gomega.Equal(3))
			gomega.Expect(rows).To(gomega.HaveLen(2))
			gomega.Expect(rows[1].Pos).To(gomega.Equal(2))
		})

		ginkgo.It("should treat a negative offset as zero", func() {
			rows, _ := x.Page(-4, 1)
			gomega.Expect(rows[0].Pos).To(gomega.Equal(0))
		})
	})

	ginkgo.Describe("RecordUse", func() {
		ginkgo.It("should increment, re-sort and reset the view", func() {
			x.Filter("htop")
			ref, ok := x.Resolve(0)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(ref.Entry.Name).To(gomega.Equal("htop"))

			updated, ok := x.RecordUse(ref)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(updated.Usage).To(gomega.Equal(uint64(1)))
			gomega.Expect(x.Search()).To(gomega.BeEmpty())

			rows, total := x.Page(0, 10)
			gomega.Expect(total).To(gomega.Equal(3))
			gomega.Expect(rows[2].Entry.Name).To(gomega.Equal("htop"))
		})

		ginkgo.It("should move an entry up once it overtakes another", func() {
			ref, _ := x.Resolve(1) // Files, usage 2
			for range 4 {
				x.RecordUse(ref)
			}
			rows, _ := x.Page(0, 1)
			gomega.Expect(rows[0].Entry.Name).To(gomega.Equal("Files"))
			gomega.Expect(rows[0].Entry.Usage).To(gomega.Equal(uint64(6)))
		})

		ginkgo.It("should re-resolve a stale reference by id", func() {
			ref, _ := x.Resolve(2) // htop
			x.Swap(newManagerOf(
				app.New("htop", "/usr/bin/htop", 0, 0),
				app.New("Firefox", "/apps/firefox.desktop", 0, 5),
			))

			updated, ok := x.RecordUse(ref)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(updated.ID).To(gomega.Equal("/usr/bin/htop"))

			var usage map[string]uint64
			x.View(func(m *Manager) {
				usage = make(map[string]uint64)
				for _, e := range m.Entries() {
					usage[e.ID] = e.Usage
				}
			})
			gomega.Expect(usage).To(gomega.Equal(map[string]uint64{
				"/usr/bin/htop":         1,
				"/apps/firefox.desktop": 5,
			}))
		})

		ginkgo.It("should report an entry that is gone", func() {
			ref, _ := x.Resolve(2)
			x.Clear()

			_, ok := x.RecordUse(ref)
			gomega.Expect(ok).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("Resolve", func() {
		ginkgo.It("should reject positions outside the view", func() {
			_, ok := x.Resolve(3)
			gomega.Expect(ok).To(gomega.BeFalse())
			_, ok = x.Resolve(-1)
			gomega.Expect(ok).To(gomega.BeFalse())
		})
	})

	ginkgo.It("should serialise concurrent filters and launches", func() {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				x.Filter([]string{"f", "h", ""}[i%3])
				x.Page(0, 10)
			}()
			go func() {
				defer wg.Done()
				if ref, ok := x.Resolve(0); ok {
					x.RecordUse(ref)
				}
			}()
		}
		wg.Wait()
		gomega.Expect(x.Count()).To(gomega.Equal(3))
	})
})
