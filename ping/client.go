package ping

import "mini-thrift/codec"

// Caller performs one call. *client.Client and *client.Pool implement it.
type Caller interface {
	Call(method string, args codec.Struct, result codec.Result) error
}

// Client is the typed caller side of Ping.
type Client struct {
	c Caller
}

func NewClient(c Caller) *Client {
	return &Client{c: c}
}

func (c *Client) Ping() (string, error) {
	var res PingResult
	if err := c.c.Call("Ping", &PingArgs{}, &res); err != nil {
		return "", err
	}
	return *res.Success, nil
}

// Echo returns message as echoed by the server, or an *EchoError.
func (c *Client) Echo(message string) (string, error) {
	var res EchoResult
	if err := c.c.Call("Echo", &EchoArgs{Message: &message}, &res); err != nil {
		return "", err
	}
	return *res.Success, nil
}
