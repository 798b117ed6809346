package chunker

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestChunker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chunker Suite")
}

var _ = Describe("New", func() {
	It("creates a chunker when overlap leaves room for new content", func() {
		c, err := New(100, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).NotTo(BeNil())
	})

	It("rejects overlap equal to size", func() {
		_, err := New(100, 100)
		Expect(err).To(MatchError(ErrOverlap))
	})

	It("rejects overlap greater than size", func() {
		_, err := New(100, 150)
		Expect(err).To(MatchError(ErrOverlap))
	})

	It("rejects negative overlap", func() {
		_, err := New(100, -1)
		Expect(err).To(MatchError(ErrOverlap))
	})

	It("rejects a zero size", func() {
		_, err := New(0, 0)
		Expect(err).To(MatchError(ErrOverlap))
	})
})

var _ = Describe("Chunk", func() {
	Context("with empty input", func() {
		It("returns no chunks for an empty string", func() {
			c, _ := New(100, 20)
			Expect(c.Chunk("")).To(BeEmpty())
		})

		It("returns no chunks for whitespace-only input", func() {
			c, _ := New(100, 20)
			Expect(c.Chunk("   \n\n\t  ")).To(BeEmpty())
		})
	})

	Context("with input under the chunk size", func() {
		It("returns exactly one chunk equal to the trimmed input", func() {
			c, _ := New(500, 50)
			chunks := c.Chunk("Short text.")

			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Content).To(Equal("Short text."))
			Expect(chunks[0].Index).To(Equal(0))
			Expect(chunks[0].StartChar).To(Equal(0))
			Expect(chunks[0].EndChar).To(Equal(len("Short text.")))
		})
	})

	Context("with repeated sentences spanning several chunks", func() {
		var chunks []Chunk

		BeforeEach(func() {
			c, err := New(100, 20)
			Expect(err).NotTo(HaveOccurred())
			chunks = c.Chunk(strings.Repeat("This is a test sentence. ", 20))
		})

		It("produces more than one chunk", func() {
			Expect(len(chunks)).To(BeNumerically(">", 1))
		})

		It("keeps every chunk within size plus overlap", func() {
			for _, chunk := range chunks {
				Expect(len(chunk.Content)).To(BeNumerically("<=", 150))
			}
		})

		It("assigns strictly increasing indices from zero", func() {
			for i, chunk := range chunks {
				Expect(chunk.Index).To(Equal(i))
			}
		})

		It("trims every chunk", func() {
			for _, chunk := range chunks {
				Expect(chunk.Content).To(Equal(strings.TrimSpace(chunk.Content)))
				Expect(chunk.Content).NotTo(BeEmpty())
			}
		})
	})

	Context("overlap seeding", func() {
		It("starts each chunk with the word-aligned tail of its predecessor", func() {
			c, _ := New(12, 5)
			chunks := c.Chunk("aaaa bbbb cccc dddd eeee ffff gggg hhhh")

			Expect(chunks).To(HaveLen(7))
			Expect(chunks[0].Content).To(Equal("aaaa bbbb"))
			Expect(chunks[1].Content).To(Equal("bbbb cccc"))
			Expect(chunks[2].Content).To(Equal("cccc dddd"))
			Expect(chunks[6].Content).To(Equal("gggg hhhh"))
		})

		It("applies no overlap when overlap is zero", func() {
			c, _ := New(12, 0)
			chunks := c.Chunk("aaaa bbbb cccc dddd")

			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].Content).To(Equal("aaaa bbbb"))
			Expect(chunks[1].Content).To(Equal("cccc dddd"))
		})
	})

	Context("positional recovery", func() {
		It("locates chunks at monotonically increasing offsets", func() {
			c, _ := New(12, 5)
			text := "aaaa bbbb cccc dddd eeee ffff gggg hhhh"
			chunks := c.Chunk(text)

			prev := -1
			for _, chunk := range chunks {
				Expect(chunk.StartChar).To(BeNumerically(">", prev))
				Expect(chunk.EndChar - chunk.StartChar).To(Equal(len(chunk.Content)))
				Expect(text[chunk.StartChar:chunk.EndChar]).To(Equal(chunk.Content))
				prev = chunk.StartChar
			}
		})
	})

	Context("whitespace normalization", func() {
		It("collapses runs of spaces", func() {
			c, _ := New(500, 50)
			chunks := c.Chunk("Hello   world")

			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Content).To(Equal("Hello world"))
		})

		It("collapses three or more newlines to a paragraph break", func() {
			c, _ := New(500, 50)
			chunks := c.Chunk("Para one.\n\n\n\n\nPara two.")

			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Content).To(Equal("Para one. Para two."))
		})
	})

	Context("input with no separators", func() {
		It("falls back to per-character splitting", func() {
			c, _ := New(10, 3)
			chunks := c.Chunk(strings.Repeat("x", 30))

			Expect(len(chunks)).To(BeNumerically(">", 1))
			for _, chunk := range chunks {
				Expect(chunk.Content).NotTo(BeEmpty())
			}
		})
	})

	Context("idempotence", func() {
		It("yields identical content sequences for repeated calls", func() {
			c, _ := New(100, 20)
			text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 15)

			first := c.Chunk(text)
			second := c.Chunk(text)

			Expect(second).To(HaveLen(len(first)))
			for i := range first {
				Expect(second[i].Content).To(Equal(first[i].Content))
				Expect(second[i].StartChar).To(Equal(first[i].StartChar))
			}
		})
	})
})
