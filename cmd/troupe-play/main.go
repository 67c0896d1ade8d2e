// Command troupe-play runs the engine against the default audio device with
// a small demo track: an arpeggiator driving a sine synth through a gain
// stage. Hardware MIDI input can be routed in, engine MIDI output routed
// out, and the session can be captured to a 32-bit float WAV file.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/jkempas/troupe"
	"github.com/jkempas/troupe/gomidi"
	"github.com/jkempas/troupe/oto"
	"github.com/jkempas/troupe/toys"
)

type config struct {
	SampleRate int     `yaml:"sample_rate"`
	Tempo      float64 `yaml:"tempo"`
	WavPath    string  `yaml:"wav_path"`
	MidiInput  string  `yaml:"midi_input"`
	MidiOutput string  `yaml:"midi_output"`
	QueueSize  int     `yaml:"queue_size"`
}

func defaultConfig() config {
	return config{
		SampleRate: troupe.DefaultSampleRate,
		Tempo:      troupe.DefaultTempo,
		QueueSize:  4096,
	}
}

func main() {
	configPath := pflag.StringP("config", "c", "", "Read settings from a YAML file; flags override it.")
	sampleRate := pflag.Int("sample-rate", 0, "Sample rate in Hz.")
	tempo := pflag.Float64("tempo", 0, "Tempo in beats per minute.")
	wavPath := pflag.StringP("wav", "w", "", "Capture the session to a 32-bit float WAV file.")
	midiInput := pflag.String("midi-input", "", "Open the first MIDI input whose name starts with this prefix.")
	midiOutput := pflag.String("midi-output", "", "Open the first MIDI output whose name starts with this prefix.")
	queueSize := pflag.Int("queue-size", 0, "Audio queue capacity in frames.")
	duration := pflag.DurationP("duration", "d", 0, "Stop after this long; 0 plays until interrupted.")
	help := pflag.BoolP("help", "h", false, "Show help.")
	pflag.Parse()
	if *help {
		printUsage()
		os.Exit(0)
	}

	cfg := defaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("could not read config %v: %v", *configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("could not parse config %v: %v", *configPath, err)
		}
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *tempo > 0 {
		cfg.Tempo = *tempo
	}
	if *wavPath != "" {
		cfg.WavPath = *wavPath
	}
	if *midiInput != "" {
		cfg.MidiInput = *midiInput
	}
	if *midiOutput != "" {
		cfg.MidiOutput = *midiOutput
	}
	if *queueSize > 0 {
		cfg.QueueSize = *queueSize
	}

	service := troupe.NewEngineService()
	queue := troupe.NewAudioQueue(cfg.QueueSize)
	service.Send(troupe.ConfigureMsg{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 2,
		Queue:        queue,
		WavPath:      cfg.WavPath,
	})
	service.SetTempo(cfg.Tempo)

	trackUid, err := service.CreateTrack()
	if err != nil {
		log.Fatalf("could not create track: %v", err)
	}
	track := service.Track(trackUid)
	track.Send(troupe.AddInstrumentMsg{Entity: toys.NewArpeggiator()})
	track.Send(troupe.AddInstrumentMsg{Entity: toys.NewSynth(cfg.SampleRate)})
	track.Send(troupe.AddEffectMsg{Entity: toys.NewGain(0.5)})

	midiContext := gomidi.NewContext(service)
	defer midiContext.Close()
	if cfg.MidiInput != "" {
		if err := midiContext.OpenInputByPrefix(cfg.MidiInput); err != nil {
			log.Printf("MIDI input unavailable: %v", err)
		}
	}
	if cfg.MidiOutput != "" {
		if err := midiContext.OpenOutputByPrefix(cfg.MidiOutput); err != nil {
			log.Printf("MIDI output unavailable: %v", err)
		}
	}
	go func() {
		for event := range service.Events() {
			if err := midiContext.HandleEvent(event); err != nil {
				log.Printf("MIDI output error: %v", err)
			}
		}
	}()

	audioContext, err := oto.NewContext(cfg.SampleRate)
	if err != nil {
		log.Fatalf("could not acquire audio device: %v", err)
	}
	player := audioContext.NewPlayer(queue, service)
	// Prime the queue so the device does not start on silence.
	service.Send(troupe.NeedsAudioMsg{Count: queue.Cap()})
	player.Play()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-interrupt:
	case <-timeout:
	}

	service.Stop()
	service.Send(troupe.QuitMsg{})
	<-service.Finished
	if err := player.Close(); err != nil {
		log.Printf("could not close player: %v", err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Troupe command line utility for playing the demo track.\nUsage: %s [flags]\n", os.Args[0])
	pflag.PrintDefaults()
}
