// Package beep plays short recording cues through PulseAudio.
package beep

import (
	"math"
	"sync"

	"github.com/jfreymuth/pulse"

	"keytalk/log"
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Player plays cues asynchronously. A disabled or unconnected Player is
// silent.
type Player struct {
	enabled bool

	once   sync.Once
	client *pulse.Client

	mu      sync.Mutex
	playing sync.WaitGroup

	start, end, fail []int16
}

func New(enabled bool) *Player {
	return &Player{
		enabled: enabled,
		start:   tick(startFreq, 0.2, startVolume, startDecay),
		end:     tick(endFreq, 0.2, endVolume, endDecay),
		fail:    doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay),
	}
}

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

func (p *Player) connect() *pulse.Client {
	p.once.Do(func() {
		c, err := pulse.NewClient(pulse.ClientApplicationName("keytalk"))
		if err != nil {
			log.Warnf("beep disabled: %v", err)
			return
		}
		p.client = c
	})
	return p.client
}

func (p *Player) play(samples []int16) {
	if !p.enabled {
		return
	}
	p.playing.Add(1)
	go func() {
		defer p.playing.Done()
		c := p.connect()
		if c == nil {
			return
		}
		// one cue at a time; overlapping streams just smear
		p.mu.Lock()
		defer p.mu.Unlock()

		pos := 0
		reader := pulse.Int16Reader(func(buf []int16) (int, error) {
			if pos >= len(samples) {
				return 0, pulse.EndOfData
			}
			n := copy(buf, samples[pos:])
			pos += n
			return n, nil
		})
		stream, err := c.NewPlayback(reader,
			pulse.PlaybackMono,
			pulse.PlaybackSampleRate(sampleRate),
			pulse.PlaybackLatency(0.1),
		)
		if err != nil {
			log.Debugf("beep playback: %v", err)
			return
		}
		stream.Start()
		stream.Drain()
		stream.Stop()
		stream.Close()
	}()
}

func (p *Player) Start() { p.play(p.start) }
func (p *Player) Stop()  { p.play(p.end) }
func (p *Player) Error() { p.play(p.fail) }

// Close waits for pending cues and disconnects.
func (p *Player) Close() {
	p.playing.Wait()
	if p.client != nil {
		p.client.Close()
	}
}
