package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 4KB, 4-way, 64B lines, 16 sets.
		c = cache.New(cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
		})
	})

	Describe("Read operations", func() {
		It("should miss on cold cache", func() {
			result := c.Read(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(BeZero())
		})

		It("should hit on a cached block", func() {
			c.Read(0x1000)

			result := c.Read(0x1000)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.HitRate()).To(Equal(0.5))
		})

		It("should hit on different addresses in same cache line", func() {
			c.Read(0x1000)
			Expect(c.Read(0x1004).Hit).To(BeTrue())
			Expect(c.Read(0x103C).Hit).To(BeTrue())
			Expect(c.Read(0x1040).Hit).To(BeFalse())
		})

		It("should charge store forwarding to a load of the stored word", func() {
			c.Write(0x2000)

			Expect(c.Read(0x2000).Latency).To(Equal(uint64(1) + cache.StoreForwardLatency))
			Expect(c.Read(0x2000).Latency).To(Equal(uint64(1)))
		})
	})

	Describe("Write operations", func() {
		It("should write-allocate on miss", func() {
			result := c.Write(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			Expect(c.Contains(0x1000)).To(BeTrue())
		})

		It("should hit on a cached block", func() {
			c.Write(0x1000)

			result := c.Access(0x1008, true)
			Expect(result.Hit).To(BeTrue())
			Expect(c.Stats().Writes).To(Equal(uint64(2)))
		})
	})

	Describe("Eviction", func() {
		fillSet := func() {
			// Set 0 addresses are 1KB apart.
			c.Write(0x0000)
			c.Write(0x0400)
			c.Write(0x0800)
			c.Write(0x0C00)
		}

		It("should evict the LRU block when a set is full", func() {
			fillSet()

			Expect(c.Read(0x0000).Hit).To(BeTrue())
			Expect(c.Read(0x0400).Hit).To(BeTrue())
			Expect(c.Read(0x0800).Hit).To(BeTrue())
			Expect(c.Read(0x0C00).Hit).To(BeTrue())

			result := c.Read(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint32(0x0000)))

			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
			Expect(c.Contains(0x0000)).To(BeFalse())
		})

		It("should count writebacks of dirty evicted blocks", func() {
			fillSet()

			c.Read(0x0400)
			c.Read(0x0800)
			c.Read(0x0C00)

			result := c.Write(0x1000)
			Expect(result.Writeback).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint32(0x0000)))
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})

		It("should not write back clean blocks", func() {
			c.Read(0x0000)
			c.Read(0x0400)
			c.Read(0x0800)
			c.Read(0x0C00)

			result := c.Read(0x1000)
			Expect(result.Evicted).To(BeTrue())
			Expect(result.Writeback).To(BeFalse())
		})
	})

	Describe("Invalidate and Flush", func() {
		It("should invalidate a single block", func() {
			c.Read(0x0000)
			c.Read(0x0040)

			c.Invalidate(0x0000)
			Expect(c.Contains(0x0000)).To(BeFalse())
			Expect(c.Contains(0x0040)).To(BeTrue())
		})

		It("should count a writeback per dirty block on flush", func() {
			c.Write(0x0000)
			c.Write(0x1000)
			c.Read(0x2000)

			c.Flush()

			Expect(c.Stats().Writebacks).To(Equal(uint64(2)))
			Expect(c.Contains(0x0000)).To(BeFalse())
			Expect(c.Contains(0x2000)).To(BeFalse())
		})

		It("should reset tags and statistics", func() {
			c.Write(0x0000)
			c.Reset()

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Read(0x0000).Hit).To(BeFalse())
		})
	})

	Describe("Statistics", func() {
		It("should add statistics", func() {
			a := cache.Statistics{Reads: 1, Hits: 1}
			b := cache.Statistics{Writes: 2, Misses: 2, Writebacks: 1}
			Expect(a.Add(b)).To(Equal(cache.Statistics{
				Reads: 1, Writes: 2, Hits: 1, Misses: 2, Writebacks: 1,
			}))
		})

		It("should report a zero hit rate with no accesses", func() {
			Expect(cache.Statistics{}.HitRate()).To(BeZero())
		})
	})

	It("should create the default L1D config", func() {
		config := cache.DefaultL1DConfig()
		Expect(config.Size).To(Equal(16 * 1024))
		Expect(config.Associativity).To(Equal(4))
		Expect(config.BlockSize).To(Equal(64))
	})
})
