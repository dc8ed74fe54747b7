// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nphtest

import (
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Pin implements gpio.PinIn for tests. Send to EdgesChan to simulate an
// interrupt edge; close or re-arm via In to simulate the edge being
// consumed or cancelled, the same contract periph's own gpiotest.Pin
// gives its WaitForEdge callers.
type Pin struct {
	N   string
	Num int

	mu        sync.Mutex
	l         gpio.Level
	pull      gpio.Pull
	EdgesChan chan gpio.Level
}

// NewPin returns a ready-to-use fake interrupt pin.
func NewPin(name string) *Pin {
	return &Pin{N: name, EdgesChan: make(chan gpio.Level, 1)}
}

func (p *Pin) String() string   { return p.N }
func (p *Pin) Halt() error      { return nil }
func (p *Pin) Name() string     { return p.N }
func (p *Pin) Number() int      { return p.Num }
func (p *Pin) Function() string { return "In/" + p.l.String() }

// In implements gpio.PinIn. Every call flushes any buffered edge, so a
// later WaitForEdge does not see it. It does not wake a WaitForEdge that
// is already blocked.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pull = pull
	if edge != gpio.NoEdge && p.EdgesChan == nil {
		return errors.New("nphtest: Pin.EdgesChan is nil")
	}
	select {
	case <-p.EdgesChan:
	default:
	}
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.l
}

// WaitForEdge implements gpio.PinIn. It returns false on a timeout or when
// EdgesChan is closed; a negative timeout waits until an edge arrives or
// the channel is closed.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		l, ok := <-p.EdgesChan
		if ok {
			p.setLevel(l)
		}
		return ok
	}
	select {
	case <-time.After(timeout):
		return false
	case l, ok := <-p.EdgesChan:
		if !ok {
			return false
		}
		p.setLevel(l)
		return true
	}
}

func (p *Pin) setLevel(l gpio.Level) {
	p.mu.Lock()
	p.l = l
	p.mu.Unlock()
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pull
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return p.Pull()
}

// Fire simulates an interrupt edge arriving on the line.
func (p *Pin) Fire(l gpio.Level) {
	p.EdgesChan <- l
}

var _ gpio.PinIn = &Pin{}
