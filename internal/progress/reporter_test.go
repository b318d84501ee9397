package progress

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReporter(t *testing.T) {
	r := New()
	r.Start(10)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Complete("ok.jpg")
		}()
	}
	wg.Wait()
	r.Skip("clip.mp4", "unsupported format")
	r.Error("z.jpg", errors.New("truncated"))
	r.Error("a.png", errors.New("bad crc"))

	s := r.Stats()
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 6, s.Completed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 2, s.Failed)

	failures := r.Failures()
	assert.Equal(t, []string{"a.png", "z.jpg"}, []string{failures[0].Path, failures[1].Path})
	r.Finish()

	r.Start(1)
	assert.Empty(t, r.Failures())
	assert.Zero(t, r.Stats().Completed)
}
