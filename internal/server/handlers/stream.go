package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/kurban/internal/domain/models"
)

const keepAliveInterval = 25 * time.Second

// latest is a one-slot mailbox that keeps only the newest snapshot, so a slow
// client never blocks cache delivery.
type latest struct {
	ch chan []models.Animal
}

func newLatest() *latest {
	return &latest{ch: make(chan []models.Animal, 1)}
}

// put is only called from the cache delivery path, which is serialized.
func (l *latest) put(animals []models.Animal) {
	select {
	case <-l.ch:
	default:
	}
	l.ch <- animals
}

// streamSnapshots registers on the cache and calls emit for each snapshot
// until the client disconnects or emit returns false.
func streamSnapshots(c *gin.Context, view AnimalView, emit func(animals []models.Animal) bool) {
	box := newLatest()
	cancel := view.Listen(box.put)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	done := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-done:
			return false
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case animals := <-box.ch:
			return emit(animals)
		}
	})
}
