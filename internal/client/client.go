// Package client implements the user-facing side of the daemon protocol: a
// connection that sends requests and consumes the per-request response
// streams.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/inshproject/insh/internal/api"
	"github.com/inshproject/insh/internal/paths"
)

// DialTimeout bounds the initial socket connect.
const DialTimeout = 3 * time.Second

// Client is a single connection to the daemon. Not safe for concurrent use;
// open one connection per goroutine instead.
type Client struct {
	conn net.Conn
	enc  *api.Encoder
	dec  *api.Decoder
}

// Dial connects to the daemon socket at the default path.
func Dial() (*Client, error) {
	socket, err := paths.Socket()
	if err != nil {
		return nil, err
	}
	return DialSocket(socket)
}

// DialSocket connects to the daemon at an explicit socket path.
func DialSocket(socket string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socket, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w", socket, err)
	}
	return &Client{
		conn: conn,
		enc:  api.NewEncoder(conn),
		dec:  api.NewDecoder(conn),
	}, nil
}

// Reachable reports whether a daemon is accepting connections on the given
// socket.
func Reachable(socket string) bool {
	conn, err := net.DialTimeout("unix", socket, DialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one request to the daemon.
func (c *Client) Send(req *api.Request) error {
	return c.enc.Encode(req)
}

// Next reads the next response from the daemon.
func (c *Client) Next() (*api.Response, error) {
	var resp api.Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindFiles streams matching entries for pattern under dir, calling emit for
// each one. It consumes responses until the final one for this request and
// ignores interleaved responses for other request ids.
func (c *Client) FindFiles(dir, pattern string, emit func(api.Entry)) error {
	req, err := api.NewFindFilesRequest(dir, pattern)
	if err != nil {
		return err
	}
	if err := c.Send(req); err != nil {
		return err
	}
	return c.collect(req.ID, emit)
}

func (c *Client) collect(requestID uuid.UUID, emit func(api.Entry)) error {
	for {
		resp, err := c.Next()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if resp.RequestID != requestID {
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("daemon error (%s): %s", resp.Error.Code, resp.Error.Message)
		}
		result, err := resp.FindFilesResult()
		if err != nil {
			return err
		}
		for _, e := range result.Entries {
			emit(e)
		}
		if resp.Last {
			return nil
		}
	}
}
