package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

var t0 = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func TestLifecycle(t *testing.T) {
	s := domain.StoppedTimer()

	s = Apply(s, Started{At: t0})
	assert.Equal(t, domain.TimerPlaying, s.Status)
	assert.Equal(t, domain.ActionPlay, s.LastAction)
	assert.Equal(t, 90*time.Second, Elapsed(s, t0.Add(90*time.Second)))

	s = Apply(s, Paused{At: t0.Add(10 * time.Minute)})
	assert.Equal(t, domain.TimerPaused, s.Status)
	assert.True(t, s.Anchor.IsZero())
	assert.Equal(t, 10*time.Minute, Elapsed(s, t0.Add(time.Hour)), "paused clock is frozen")

	s = Apply(s, Resumed{At: t0.Add(time.Hour)})
	assert.Equal(t, domain.TimerPlaying, s.Status)
	assert.Equal(t, domain.ActionResume, s.LastAction)
	assert.Equal(t, 10*time.Minute, Elapsed(s, t0.Add(time.Hour)), "resume continues from frozen value")
	assert.Equal(t, 11*time.Minute, Elapsed(s, t0.Add(time.Hour+time.Minute)))

	s = Apply(s, Stopped{})
	assert.Equal(t, domain.TimerStopped, s.Status)
	assert.Equal(t, domain.ActionStop, s.LastAction)
	assert.Zero(t, Elapsed(s, t0.Add(2*time.Hour)))
	assert.Equal(t, domain.ActionStop, domain.StoppedTimer().LastAction, "a timer that never ran reports STOP")
}

func TestResumeContinuity(t *testing.T) {
	s := domain.TimerState{Status: domain.TimerPaused, Elapsed: 600000 * time.Millisecond, LastAction: domain.ActionPause}
	now := t0.Add(3 * time.Hour)
	s = Apply(s, Resumed{At: now})
	assert.Equal(t, 600000*time.Millisecond, Elapsed(s, now))
}

func TestInvalidTransitionsAreIgnored(t *testing.T) {
	stopped := domain.StoppedTimer()
	assert.Equal(t, stopped, Apply(stopped, Paused{At: t0}))
	assert.Equal(t, stopped, Apply(stopped, Resumed{At: t0}))
	assert.Equal(t, stopped, Apply(stopped, Stopped{}))

	playing := Apply(stopped, Started{At: t0})
	assert.Equal(t, playing, Apply(playing, Started{At: t0.Add(time.Minute)}))
	assert.Equal(t, playing, Apply(playing, Resumed{At: t0.Add(time.Minute)}))
}

func TestSynced(t *testing.T) {
	now := t0.Add(time.Hour)

	s := Apply(domain.StoppedTimer(), Synced{Status: domain.TimerPlaying, Total: 25 * time.Minute, At: now})
	assert.Equal(t, domain.TimerPlaying, s.Status)
	assert.Equal(t, now.Add(-25*time.Minute), s.Anchor)
	assert.Equal(t, 26*time.Minute, Elapsed(s, now.Add(time.Minute)))

	s = Apply(s, Synced{Status: domain.TimerPaused, Total: 30 * time.Minute, At: now})
	assert.Equal(t, domain.TimerPaused, s.Status)
	assert.Equal(t, 30*time.Minute, Elapsed(s, now.Add(time.Hour)))
	assert.Equal(t, domain.ActionPause, s.LastAction)

	s = Apply(s, Synced{Status: domain.TimerStopped, At: now})
	assert.Equal(t, domain.StoppedTimer(), s)
}

func TestFailedResets(t *testing.T) {
	s := Apply(domain.StoppedTimer(), Started{At: t0})
	assert.Equal(t, domain.StoppedTimer(), Apply(s, Failed{}))
}

func TestFormat(t *testing.T) {
	tests := map[time.Duration]string{
		0:                                   "00:00:00",
		59 * time.Second:                    "00:00:59",
		61*time.Minute + 5*time.Second:      "01:01:05",
		27*time.Hour + 999*time.Millisecond: "27:00:00",
		-time.Second:                        "00:00:00",
	}
	for d, want := range tests {
		assert.Equal(t, want, Format(d), d.String())
	}
}

func TestMinutes(t *testing.T) {
	s := Apply(domain.StoppedTimer(), Started{At: t0})
	assert.Equal(t, 2, Minutes(s, t0.Add(90*time.Second)))
	assert.Equal(t, 1, Minutes(s, t0.Add(89*time.Second)))
}
