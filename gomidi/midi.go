// Package gomidi connects the engine service to hardware MIDI ports through
// gitlab.com/gomidi's rtmidi driver. Input messages become MidiMsg requests
// to the service; MidiOutEvents from the service go to an output port.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jkempas/troupe"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type Context struct {
	driver    *rtmididrv.Driver
	service   *troupe.EngineService
	currentIn drivers.In
	out       drivers.Out
	sendOut   func(midi.Message) error
	stopIn    func()
}

// NewContext opens the rtmidi driver. A nil driver is tolerated; every
// open then fails with a clear error instead of a crash.
func NewContext(service *troupe.EngineService) *Context {
	c := &Context{service: service}
	c.driver, _ = rtmididrv.New()
	return c
}

func (c *Context) Close() {
	if c.stopIn != nil {
		c.stopIn()
		c.stopIn = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	if c.out != nil && c.out.IsOpen() {
		c.out.Close()
	}
	if c.driver != nil {
		c.driver.Close()
	}
}

// InputNames lists the available input ports.
func (c *Context) InputNames() []string {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// OpenInputByPrefix opens the first input port whose name starts with
// namePrefix; an empty prefix opens the first port found.
func (c *Context) OpenInputByPrefix(namePrefix string) error {
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if namePrefix == "" || strings.HasPrefix(in.String(), namePrefix) {
			return c.openInput(in)
		}
	}
	return fmt.Errorf("no MIDI input matching %q", namePrefix)
}

func (c *Context) openInput(in drivers.In) error {
	if c.currentIn == in {
		return nil
	}
	if c.stopIn != nil {
		c.stopIn()
		c.stopIn = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input %s: %w", in.String(), err)
	}
	c.currentIn = in
	stop, err := midi.ListenTo(in, c.handleMessage)
	if err != nil {
		in.Close()
		c.currentIn = nil
		return fmt.Errorf("listening to MIDI input %s: %w", in.String(), err)
	}
	c.stopIn = stop
	return nil
}

func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	var channel uint8
	msg.GetChannel(&channel)
	c.service.Send(troupe.MidiMsg{Channel: channel, Message: msg})
}

// OpenOutputByPrefix opens the first output port whose name starts with
// namePrefix; an empty prefix opens the first port found.
func (c *Context) OpenOutputByPrefix(namePrefix string) error {
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	outs, err := c.driver.Outs()
	if err != nil {
		return fmt.Errorf("listing MIDI outputs: %w", err)
	}
	for _, out := range outs {
		if namePrefix == "" || strings.HasPrefix(out.String(), namePrefix) {
			if err := out.Open(); err != nil {
				return fmt.Errorf("opening MIDI output %s: %w", out.String(), err)
			}
			send, err := midi.SendTo(out)
			if err != nil {
				out.Close()
				return fmt.Errorf("sending to MIDI output %s: %w", out.String(), err)
			}
			c.out = out
			c.sendOut = send
			return nil
		}
	}
	return fmt.Errorf("no MIDI output matching %q", namePrefix)
}

// HandleEvent forwards a service event to the output port if one is open.
// Non-MIDI events are ignored, so the whole event stream can be piped in.
func (c *Context) HandleEvent(event any) error {
	out, ok := event.(troupe.MidiOutEvent)
	if !ok || c.sendOut == nil {
		return nil
	}
	if err := c.sendOut(out.Message); err != nil {
		return fmt.Errorf("writing MIDI output: %w", err)
	}
	return nil
}
