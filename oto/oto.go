// Package oto drives a real audio device from an AudioQueue using
// ebitengine/oto. The device pulls: every read drains the queue, and when
// the queue falls under its low-water mark the reader asks the engine
// service for the deficit.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ebitengine/oto/v3"
	"github.com/jkempas/troupe"
)

// channelCount is fixed: the engine generates stereo frames.
const channelCount = 2

type Context struct {
	ctx *oto.Context
}

func NewContext(sampleRate int) (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// NewPlayer builds a player that feeds the device from queue and keeps the
// service ahead of the device with NeedsAudio requests.
func (c *Context) NewPlayer(queue *troupe.AudioQueue, service *troupe.EngineService) *Player {
	r := &queueReader{queue: queue, service: service}
	return &Player{player: c.ctx.NewPlayer(r)}
}

type Player struct {
	player *oto.Player
}

func (p *Player) Play() { p.player.Play() }

func (p *Player) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// queueReader adapts the AudioQueue to the io.Reader oto pulls from. An
// empty queue yields silence rather than blocking the device.
type queueReader struct {
	queue   *troupe.AudioQueue
	service *troupe.EngineService
}

const bytesPerFrame = channelCount * 4

func (r *queueReader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	for i := 0; i < frames; i++ {
		s, ok := r.queue.Pop()
		if !ok {
			s = troupe.SilentSample
		}
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame:], math.Float32bits(s[0]))
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame+4:], math.Float32bits(s[1]))
	}
	// Refill request: ask for exactly what would top the queue up again.
	if pending := r.queue.Len(); pending < r.queue.Cap()/2 {
		r.service.Send(troupe.NeedsAudioMsg{Count: r.queue.Cap() - pending})
	}
	return frames * bytesPerFrame, nil
}
