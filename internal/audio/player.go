package audio

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNothingToPlay is returned when Play is given an empty buffer.
var ErrNothingToPlay = errors.New("audio buffer is empty")

// Clip is the buffer currently held by a Player.
type Clip struct {
	ID        string
	Buffer    Buffer
	StartedAt time.Time
}

// EndsAt returns when the clip finishes playing.
func (c Clip) EndsAt() time.Time {
	return c.StartedAt.Add(c.Buffer.Duration())
}

// Player holds at most one clip. Starting a new clip releases the previous one.
// A Player is not safe for concurrent use; the session loop owns it.
type Player struct {
	now     func() time.Time
	current *Clip
}

// NewPlayer creates a player. A nil clock defaults to time.Now.
func NewPlayer(now func() time.Time) *Player {
	if now == nil {
		now = time.Now
	}
	return &Player{now: now}
}

// Play replaces any current clip with buf.
func (p *Player) Play(buf Buffer) (Clip, error) {
	if buf.Empty() {
		return Clip{}, ErrNothingToPlay
	}
	p.Stop()
	clip := Clip{ID: uuid.NewString(), Buffer: buf, StartedAt: p.now()}
	p.current = &clip
	return clip, nil
}

// Stop releases the current clip. It reports whether one was playing.
func (p *Player) Stop() bool {
	active := p.Playing()
	p.current = nil
	return active
}

// Current returns the clip still playing, if any. Finished clips are released.
func (p *Player) Current() (Clip, bool) {
	if p.current == nil {
		return Clip{}, false
	}
	if !p.now().Before(p.current.EndsAt()) {
		p.current = nil
		return Clip{}, false
	}
	return *p.current, true
}

// Playing reports whether a clip is still playing.
func (p *Player) Playing() bool {
	_, ok := p.Current()
	return ok
}
