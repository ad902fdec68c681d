// Package ping holds the stubs of the Ping service: argument and result
// structs, the client wrapper and the processor binding.
//
//	service Ping {
//	  string ping()
//	  string echo(1: string message) throws (1: EchoError err)
//	}
package ping

import (
	"fmt"
	"strings"

	"mini-thrift/codec"
	"mini-thrift/message"
	"mini-thrift/protocol"
)

// PingArgs is the empty argument struct of Ping.
type PingArgs struct{}

func (a *PingArgs) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		return codec.SkipField(r, f)
	})
}

func (a *PingArgs) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "Ping_args", nil)
}

func (a *PingArgs) String() string { return "PingArgs()" }

// PingResult carries the return value of Ping in field 0.
type PingResult struct {
	Success *string
}

var _ codec.Result = (*PingResult)(nil)

func (res *PingResult) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		if f.ID != 0 {
			return codec.SkipField(r, f)
		}
		if ok, err := codec.Expect(r, f, message.String); !ok {
			return err
		}
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		res.Success = &v
		return nil
	})
}

func (res *PingResult) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "Ping_result", func() error {
		return writeOptString(w, "success", 0, res.Success)
	})
}

func (res *PingResult) IsSetSuccess() bool   { return res.Success != nil }
func (res *PingResult) DeclaredError() error { return nil }

func (res *PingResult) String() string {
	return "PingResult(" + field("success", res.Success) + ")"
}

// EchoArgs carries the message argument of Echo in field 1.
type EchoArgs struct {
	Message *string
}

func (a *EchoArgs) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		if f.ID != 1 {
			return codec.SkipField(r, f)
		}
		if ok, err := codec.Expect(r, f, message.String); !ok {
			return err
		}
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		a.Message = &v
		return nil
	})
}

func (a *EchoArgs) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "Echo_args", func() error {
		return writeOptString(w, "message", 1, a.Message)
	})
}

func (a *EchoArgs) String() string {
	return "EchoArgs(" + field("message", a.Message) + ")"
}

// EchoError is the declared exception of Echo.
type EchoError struct {
	Reason *string // 1
	Code   *int32  // 2
}

func (e *EchoError) Error() string {
	var b strings.Builder
	b.WriteString("echo error")
	if e.Code != nil {
		fmt.Fprintf(&b, " %d", *e.Code)
	}
	if e.Reason != nil {
		b.WriteString(": ")
		b.WriteString(*e.Reason)
	}
	return b.String()
}

func (e *EchoError) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		switch f.ID {
		case 1:
			if ok, err := codec.Expect(r, f, message.String); !ok {
				return err
			}
			v, err := r.ReadString()
			if err != nil {
				return err
			}
			e.Reason = &v
		case 2:
			if ok, err := codec.Expect(r, f, message.I32); !ok {
				return err
			}
			v, err := r.ReadI32()
			if err != nil {
				return err
			}
			e.Code = &v
		default:
			return codec.SkipField(r, f)
		}
		return nil
	})
}

func (e *EchoError) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "EchoError", func() error {
		if err := writeOptString(w, "reason", 1, e.Reason); err != nil {
			return err
		}
		if e.Code == nil {
			return nil
		}
		return codec.WriteField(w, message.Field{Name: "code", Type: message.I32, ID: 2}, func() error {
			return w.WriteI32(*e.Code)
		})
	})
}

func (e *EchoError) String() string {
	return "EchoError(" + field("reason", e.Reason) + ", " + field("code", e.Code) + ")"
}

// EchoResult carries either the return value of Echo (field 0) or its
// declared exception (field 1).
type EchoResult struct {
	Success *string
	Err     *EchoError
}

var _ codec.Result = (*EchoResult)(nil)

func (res *EchoResult) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		switch f.ID {
		case 0:
			if ok, err := codec.Expect(r, f, message.String); !ok {
				return err
			}
			v, err := r.ReadString()
			if err != nil {
				return err
			}
			res.Success = &v
		case 1:
			if ok, err := codec.Expect(r, f, message.Struct); !ok {
				return err
			}
			res.Err = &EchoError{}
			return res.Err.Read(r)
		default:
			return codec.SkipField(r, f)
		}
		return nil
	})
}

// Write emits the success value if set, otherwise the exception if set.
func (res *EchoResult) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "Echo_result", func() error {
		if res.Success != nil {
			return writeOptString(w, "success", 0, res.Success)
		}
		if res.Err != nil {
			return codec.WriteField(w, message.Field{Name: "err", Type: message.Struct, ID: 1}, func() error {
				return res.Err.Write(w)
			})
		}
		return nil
	})
}

func (res *EchoResult) IsSetSuccess() bool { return res.Success != nil }

func (res *EchoResult) DeclaredError() error {
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func (res *EchoResult) String() string {
	errField := "err:<nil>"
	if res.Err != nil {
		errField = "err:" + res.Err.String()
	}
	return "EchoResult(" + field("success", res.Success) + ", " + errField + ")"
}

func writeOptString(w protocol.Writer, name string, id int16, v *string) error {
	if v == nil {
		return nil
	}
	return codec.WriteField(w, message.Field{Name: name, Type: message.String, ID: id}, func() error {
		return w.WriteString(*v)
	})
}

func field[T any](name string, v *T) string {
	if v == nil {
		return name + ":<nil>"
	}
	return fmt.Sprintf("%s:%v", name, *v)
}
