package troupe

import (
	"log"
	"sync"
)

// EngineService wraps an Engine in a worker goroutine and bridges it to the
// pull-based audio device. The device reports how many frames it is short;
// the service turns that into generation cycles of at most MaxBatchFrames
// frames each and force-pushes the results into the shared AudioQueue.
//
// Direct engine access from other goroutines goes through the exported
// methods, which take the same mutex the worker holds while a message is in
// flight.
type EngineService struct {
	inputs chan any
	events chan any

	// audioIn and midiIn receive the master track's output.
	audioIn chan AudioAction
	midiIn  chan MidiAction

	mu     sync.Mutex
	engine *Engine

	wav *WavWriterService

	// Finished is closed once the worker has exited and the recording sink
	// has flushed.
	Finished chan struct{}
}

func NewEngineService() *EngineService {
	s := &EngineService{
		inputs:   make(chan any, requestChanCap),
		events:   make(chan any, requestChanCap),
		audioIn:  make(chan AudioAction, requestChanCap),
		midiIn:   make(chan MidiAction, requestChanCap),
		engine:   NewEngine(),
		wav:      NewWavWriterService(),
		Finished: make(chan struct{}),
	}
	s.engine.SubscribeAudio(s.audioIn)
	s.engine.SubscribeMidi(s.midiIn)
	TrySend(s.events, any(ResetEvent{Engine: s.engine}))
	go s.run()
	return s
}

// Send enqueues a request without blocking; a full inbox drops the request
// and logs it.
func (s *EngineService) Send(msg any) {
	if !TrySend(s.inputs, msg) {
		log.Printf("service: dropping %T, inbox full", msg)
	}
}

// Events returns the service's outbound stream: ResetEvent, MidiOutEvent.
func (s *EngineService) Events() <-chan any { return s.events }

func (s *EngineService) run() {
	var (
		queue *AudioQueue
		// framesRequested accumulates device deficit not yet generated.
		// Zero means no cycle is in flight.
		framesRequested int
		recording       bool
	)

	startCycle := func(count int) {
		if count > MaxBatchFrames {
			count = MaxBatchFrames
		}
		s.mu.Lock()
		s.engine.StartGeneration(count)
		s.mu.Unlock()
	}

	for {
		select {
		case msg := <-s.inputs:
			switch m := msg.(type) {
			case ConfigureMsg:
				queue = m.Queue
				s.mu.Lock()
				s.engine.SetSampleRate(m.SampleRate)
				s.mu.Unlock()
				recording = m.WavPath != ""
				if recording {
					s.wav.Send(WavResetMsg{
						Path:         m.WavPath,
						SampleRate:   m.SampleRate,
						ChannelCount: m.ChannelCount,
					})
				}
			case MidiMsg:
				s.mu.Lock()
				s.engine.HandleMidi(m.Channel, m.Message)
				s.mu.Unlock()
			case NeedsAudioMsg:
				if m.Count <= 0 {
					continue
				}
				if framesRequested == 0 {
					startCycle(m.Count)
				}
				framesRequested += m.Count
			case QuitMsg:
				s.mu.Lock()
				s.engine.RequestQuit()
				s.mu.Unlock()
				s.wav.Send(QuitMsg{})
				<-s.wav.Finished
				close(s.Finished)
				return
			default:
				log.Printf("service: unhandled request %T", msg)
			}

		case action := <-s.audioIn:
			assertBatchLen(action.Frames)
			if queue != nil {
				overflowed := 0
				for _, f := range action.Frames {
					if queue.ForcePush(f) {
						overflowed++
					}
				}
				if overflowed > 0 {
					log.Printf("service: audio queue overflow, %d frames overwritten", overflowed)
				}
			}
			if recording {
				s.wav.Send(WavFramesMsg{Frames: action.Frames})
			}
			if framesRequested > len(action.Frames) {
				framesRequested -= len(action.Frames)
				startCycle(framesRequested)
			} else {
				framesRequested = 0
			}

		case action := <-s.midiIn:
			TrySend(s.events, any(MidiOutEvent{
				Channel: action.Channel,
				Message: action.Message,
			}))
		}
	}
}

// CreateTrack adds an ordinary track wired into the master mix.
func (s *EngineService) CreateTrack() (TrackUid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CreateTrack()
}

// DeleteTrack unwires and stops a track.
func (s *EngineService) DeleteTrack(uid TrackUid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DeleteTrack(uid)
}

// Track returns a track's actor for direct requests, or nil.
func (s *EngineService) Track(uid TrackUid) *TrackActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Track(uid)
}

// MasterTrack returns the master track's actor.
func (s *EngineService) MasterTrack() *TrackActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.MasterTrack()
}

func (s *EngineService) SetTempo(bpm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetTempo(bpm)
}

func (s *EngineService) SetTimeSignature(ts TimeSignature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetTimeSignature(ts)
}

// SkipToStart rewinds the musical clock.
func (s *EngineService) SkipToStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Transport().SkipToStart()
}

// Stop silences all sounding notes.
func (s *EngineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Stop()
}
