package troupe

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
)

type (
	// WavResetMsg (re)opens a 32-bit float WAV stream at Path. An already
	// open stream is finalized first.
	WavResetMsg struct {
		Path         string
		SampleRate   int
		ChannelCount int
	}

	// WavFramesMsg appends a batch to the stream. Nothing is written until
	// the first non-silent sample arrives; from that sample on, everything
	// is.
	WavFramesMsg struct {
		Frames []StereoSample
	}

	// WavWriterEvent reports an I/O failure to the owning service. Capture
	// stops but playback is unaffected.
	WavWriterEvent struct {
		Err error
	}
)

// WavWriterService is the append-only recording sink, run as its own worker
// so file I/O never touches the generation path.
type WavWriterService struct {
	inputs   chan any
	events   chan WavWriterEvent
	Finished chan struct{}
}

func NewWavWriterService() *WavWriterService {
	s := &WavWriterService{
		inputs:   make(chan any, requestChanCap),
		events:   make(chan WavWriterEvent, 16),
		Finished: make(chan struct{}),
	}
	go s.run()
	return s
}

// Send enqueues an input without blocking.
func (s *WavWriterService) Send(msg any) {
	if !TrySend(s.inputs, msg) {
		log.Printf("wavwriter: dropping %T, inbox full", msg)
	}
}

// Events surfaces I/O failures.
func (s *WavWriterService) Events() <-chan WavWriterEvent { return s.events }

func (s *WavWriterService) run() {
	var w *wavFile
	// Hold off writing until the first non-silent sample, so the file does
	// not open with a stretch of lead-in silence.
	leadInEnded := false

	finalize := func() {
		if w == nil {
			return
		}
		if err := w.finalize(); err != nil {
			TrySend(s.events, WavWriterEvent{Err: fmt.Errorf("wavwriter: finalizing: %w", err)})
		}
		w = nil
	}

	for msg := range s.inputs {
		switch m := msg.(type) {
		case WavResetMsg:
			finalize()
			leadInEnded = false
			var err error
			w, err = createWavFile(m.Path, m.SampleRate, m.ChannelCount)
			if err != nil {
				w = nil
				TrySend(s.events, WavWriterEvent{Err: fmt.Errorf("wavwriter: creating %s: %w", m.Path, err)})
			}
		case WavFramesMsg:
			if w == nil {
				continue
			}
			for _, f := range m.Frames {
				if !leadInEnded && f != SilentSample {
					leadInEnded = true
				}
				if leadInEnded {
					if err := w.writeSample(f); err != nil {
						TrySend(s.events, WavWriterEvent{Err: fmt.Errorf("wavwriter: writing: %w", err)})
						w.f.Close()
						w = nil
						break
					}
				}
			}
		case QuitMsg:
			finalize()
			close(s.Finished)
			return
		}
	}
}

// wavFile is a streaming 32-bit IEEE-float WAV file. The header is written
// up front with zero lengths and patched when the stream is finalized.
type wavFile struct {
	f           *os.File
	sampleCount int // individual channel samples, not frames
}

// Header offsets of the three length fields that need patching once the
// sample count is known.
const (
	wavRiffSizeOffset = 4
	wavFactLenOffset  = 46
	wavDataSizeOffset = 54
	wavHeaderSize     = 58
)

func createWavFile(path string, sampleRate, channelCount int) (*wavFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &wavFile{f: f}
	if err := w.writeHeader(sampleRate, channelCount); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// writeHeader lays out a WAVE_FORMAT_IEEE_FLOAT header: an 18-byte fmt
// chunk plus the fact chunk the float format requires.
func (w *wavFile) writeHeader(sampleRate, channelCount int) error {
	const bytesPerSample = 4
	le := binary.LittleEndian
	buf := make([]byte, 0, wavHeaderSize)
	buf = append(buf, "RIFF"...)
	buf = le.AppendUint32(buf, 0) // patched in finalize
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = le.AppendUint32(buf, 18)
	buf = le.AppendUint16(buf, 3) // IEEE float
	buf = le.AppendUint16(buf, uint16(channelCount))
	buf = le.AppendUint32(buf, uint32(sampleRate))
	buf = le.AppendUint32(buf, uint32(sampleRate*channelCount*bytesPerSample))
	buf = le.AppendUint16(buf, uint16(channelCount*bytesPerSample))
	buf = le.AppendUint16(buf, 8*bytesPerSample)
	buf = le.AppendUint16(buf, 0) // no fmt extension
	buf = append(buf, "fact"...)
	buf = le.AppendUint32(buf, 4)
	buf = le.AppendUint32(buf, 0) // patched in finalize
	buf = append(buf, "data"...)
	buf = le.AppendUint32(buf, 0) // patched in finalize
	_, err := w.f.Write(buf)
	return err
}

func (w *wavFile) writeSample(s StereoSample) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(s[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(s[1]))
	if _, err := w.f.Write(buf[:]); err != nil {
		return err
	}
	w.sampleCount += 2
	return nil
}

func (w *wavFile) finalize() error {
	le := binary.LittleEndian
	var field [4]byte
	dataBytes := uint32(w.sampleCount * 4)

	le.PutUint32(field[:], (wavHeaderSize-8)+dataBytes)
	if _, err := w.f.WriteAt(field[:], wavRiffSizeOffset); err != nil {
		w.f.Close()
		return err
	}
	le.PutUint32(field[:], uint32(w.sampleCount))
	if _, err := w.f.WriteAt(field[:], wavFactLenOffset); err != nil {
		w.f.Close()
		return err
	}
	le.PutUint32(field[:], dataBytes)
	if _, err := w.f.WriteAt(field[:], wavDataSizeOffset); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
