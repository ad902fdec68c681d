// Package client issues calls to a remote processor and matches each reply
// to its request.
//
// A Client is synchronous: Call writes one request and blocks until the
// matching reply has been read. A Client is not safe for concurrent use;
// share a Pool between goroutines instead.
package client

import (
	"mini-thrift/codec"
	"mini-thrift/exception"
	"mini-thrift/message"
	"mini-thrift/protocol"
)

// Client is one side of a call/reply exchange over a pair of protocols.
type Client struct {
	in    protocol.Protocol
	out   protocol.Protocol
	seqID int32
}

// New returns a Client reading replies from in and writing requests to out.
func New(in, out protocol.Protocol) *Client {
	return &Client{in: in, out: out}
}

// NewFromProtocol returns a Client that reads and writes over p.
func NewFromProtocol(p protocol.Protocol) *Client {
	return New(p, p)
}

// SeqID returns the sequence id of the last request sent.
func (c *Client) SeqID() int32 {
	return c.seqID
}

// Call invokes method with args and decodes the reply into result.
//
// It returns nil when the reply carries a success value, the declared
// exception when one is set, or an *exception.ApplicationException when the
// server answered with an exception, the reply does not match the request,
// or the result is empty. Transport and decoding errors are returned as is.
func (c *Client) Call(method string, args codec.Struct, result codec.Result) error {
	c.seqID++
	seqID := c.seqID
	if err := c.send(message.Message{Name: method, Type: message.Call, SeqID: seqID}, args); err != nil {
		return err
	}
	return c.recv(method, seqID, result)
}

// Oneway sends method with args and returns once the request is flushed.
// No reply is read.
func (c *Client) Oneway(method string, args codec.Struct) error {
	c.seqID++
	return c.send(message.Message{Name: method, Type: message.Oneway, SeqID: c.seqID}, args)
}

func (c *Client) send(msg message.Message, args codec.Struct) error {
	if err := c.out.WriteMessageBegin(msg); err != nil {
		return err
	}
	if err := args.Write(c.out); err != nil {
		return err
	}
	if err := c.out.WriteMessageEnd(); err != nil {
		return err
	}
	return c.out.Flush()
}

func (c *Client) recv(method string, seqID int32, result codec.Result) error {
	msg, err := c.in.ReadMessageBegin()
	if err != nil {
		return err
	}

	if msg.Name != method {
		return c.discard(exception.New(exception.WrongMethodName, "%s: wrong method name %q in reply", method, msg.Name))
	}
	if msg.SeqID != seqID {
		return c.discard(exception.New(exception.BadSequenceID, "%s: out of order sequence response, got %d want %d", method, msg.SeqID, seqID))
	}

	switch msg.Type {
	case message.Exception:
		ae := &exception.ApplicationException{}
		if err := ae.Read(c.in); err != nil {
			return err
		}
		if err := c.in.ReadMessageEnd(); err != nil {
			return err
		}
		return ae
	case message.Reply:
	default:
		return c.discard(exception.New(exception.InvalidMessageType, "%s: invalid message type %s", method, msg.Type))
	}

	if err := result.Read(c.in); err != nil {
		return err
	}
	if err := c.in.ReadMessageEnd(); err != nil {
		return err
	}

	if result.IsSetSuccess() {
		return nil
	}
	if err := result.DeclaredError(); err != nil {
		return err
	}
	return exception.New(exception.MissingResult, "%s failed: unknown result", method)
}

// discard skips the payload of a reply that cannot be used, keeping the
// stream aligned for the next call, and returns e.
func (c *Client) discard(e *exception.ApplicationException) error {
	if err := c.in.Skip(message.Struct); err != nil {
		return err
	}
	if err := c.in.ReadMessageEnd(); err != nil {
		return err
	}
	return e
}

// Close closes the transports under the client.
func (c *Client) Close() error {
	err := c.out.Transport().Close()
	if c.in.Transport() != c.out.Transport() {
		if inErr := c.in.Transport().Close(); err == nil {
			err = inErr
		}
	}
	return err
}
