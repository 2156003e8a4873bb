package automation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emailmax/warmup/internal/enum"
)

func TestSelectorCache_LearnGetInvalidate(t *testing.T) {
	cache := NewSelectorCache(time.Hour)
	cache.Learn(enum.ProviderGmail, "create_folder_button", "#new-folder", 0.9)

	selector, ok := cache.Get(enum.ProviderGmail, "create_folder_button")
	assert.True(t, ok)
	assert.Equal(t, "#new-folder", selector)

	// Keys are per provider and element type.
	_, ok = cache.Get(enum.ProviderOutlook, "create_folder_button")
	assert.False(t, ok)

	cache.Invalidate(enum.ProviderGmail, "create_folder_button")
	_, ok = cache.Get(enum.ProviderGmail, "create_folder_button")
	assert.False(t, ok)
}

func TestSelectorCache_StaleEntryMisses(t *testing.T) {
	cache := NewSelectorCache(time.Nanosecond)
	cache.Learn(enum.ProviderGmail, "folder_name_input", "#name", 0.8)

	time.Sleep(time.Millisecond)

	_, ok := cache.Get(enum.ProviderGmail, "folder_name_input")
	assert.False(t, ok)
}

func TestSelectorCache_ConcurrentAccess(t *testing.T) {
	// Hits are counted on every Get, so concurrent readers mutate shared
	// state; this must be safe under the race detector.
	cache := NewSelectorCache(time.Hour)
	cache.Learn(enum.ProviderGmail, "create_folder_button", "#new-folder", 0.9)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				cache.Get(enum.ProviderGmail, "create_folder_button")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			cache.Learn(enum.ProviderGmail, "create_folder_button", "#new-folder", 0.9)
		}
	}()
	wg.Wait()

	selector, ok := cache.Get(enum.ProviderGmail, "create_folder_button")
	assert.True(t, ok)
	assert.Equal(t, "#new-folder", selector)
}
