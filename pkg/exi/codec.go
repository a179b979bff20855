package exi

import (
	"errors"

	"github.com/backkem/v2g/pkg/grammar"
	"github.com/pion/logging"
)

// Binder maps application messages to and from event streams.
type Binder[M any] interface {
	// MarshalEvents flattens msg into the events of one document for phase.
	MarshalEvents(msg M, phase grammar.Phase) ([]Event, error)

	// UnmarshalEvents rebuilds a message from a validated event stream.
	UnmarshalEvents(events []Event, phase grammar.Phase) (M, error)
}

// Metrics observes codec operations. size is the encoded byte length, zero
// on failure.
type Metrics interface {
	ObserveEncode(phase grammar.Phase, size int, err error)
	ObserveDecode(phase grammar.Phase, size int, err error)
}

// CodecConfig configures a Codec.
type CodecConfig[M any] struct {
	// Resolver maps phases to schemas. Required.
	Resolver *grammar.Resolver

	// Binder maps messages to events. Required.
	Binder Binder[M]

	// Options are the grammar options for every call (default: strict).
	Options grammar.Options

	// Metrics is optional.
	Metrics Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Codec converts messages to and from their compact binary form.
// A fresh grammar cache is built per call, so a Codec is safe for
// concurrent use.
type Codec[M any] struct {
	resolver *grammar.Resolver
	binder   Binder[M]
	options  grammar.Options
	metrics  Metrics
	log      logging.LeveledLogger
}

// NewCodec creates a codec.
func NewCodec[M any](config CodecConfig[M]) (*Codec[M], error) {
	if config.Resolver == nil || config.Binder == nil {
		return nil, ErrInvalidConfig
	}

	c := &Codec[M]{
		resolver: config.Resolver,
		binder:   config.Binder,
		options:  config.Options,
		metrics:  config.Metrics,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("exi")
	}
	return c, nil
}

// Encode serializes msg with the grammar of phase. Returns nil and an
// *EncodeError on failure.
func (c *Codec[M]) Encode(msg M, phase grammar.Phase) ([]byte, error) {
	data, err := c.encode(msg, phase)
	if err != nil {
		err = &EncodeError{Phase: phase, Err: err}
		if c.log != nil {
			c.log.Warnf("encode failed: %v", err)
		}
		data = nil
	} else if c.log != nil {
		c.log.Tracef("encoded %d bytes (%s)", len(data), phase)
	}

	if c.metrics != nil {
		c.metrics.ObserveEncode(phase, len(data), err)
	}
	return data, err
}

func (c *Codec[M]) encode(msg M, phase grammar.Phase) ([]byte, error) {
	cache, err := c.resolver.Cache(phase, c.options)
	if err != nil {
		return nil, err
	}
	events, err := c.binder.MarshalEvents(msg, phase)
	if err != nil {
		return nil, err
	}
	return Serialize(cache, events)
}

// Decode parses data with the grammar of phase. Returns the zero message and
// a *DecodeError on failure.
func (c *Codec[M]) Decode(data []byte, phase grammar.Phase) (M, error) {
	msg, err := c.decode(data, phase)
	if err != nil {
		var zero M
		msg = zero
		err = &DecodeError{Phase: phase, Err: err}
		if c.log != nil {
			c.log.Warnf("decode failed: %v", err)
		}
	} else if c.log != nil {
		c.log.Tracef("decoded %d bytes (%s)", len(data), phase)
	}

	if c.metrics != nil {
		size := len(data)
		if err != nil {
			size = 0
		}
		c.metrics.ObserveDecode(phase, size, err)
	}
	return msg, err
}

func (c *Codec[M]) decode(data []byte, phase grammar.Phase) (M, error) {
	var zero M
	if len(data) == 0 {
		return zero, ErrHeaderTooShort
	}
	cache, err := c.resolver.Cache(phase, c.options)
	if err != nil {
		return zero, err
	}
	events, err := Deserialize(cache, data)
	if err != nil {
		return zero, err
	}
	return c.binder.UnmarshalEvents(events, phase)
}

// ElementBinder binds documents held as *Element trees. It is the binder
// used by tools that work on untyped documents.
type ElementBinder struct{}

// MarshalEvents implements Binder.
func (ElementBinder) MarshalEvents(e *Element, _ grammar.Phase) ([]Event, error) {
	if e == nil {
		return nil, errors.New("exi: nil element")
	}
	return e.Events(), nil
}

// UnmarshalEvents implements Binder.
func (ElementBinder) UnmarshalEvents(events []Event, _ grammar.Phase) (*Element, error) {
	return BuildElement(events)
}
