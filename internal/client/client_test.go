package client

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/inshproject/insh/internal/api"
)

func TestReachable(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "test.sock")
	if Reachable(socket) {
		t.Error("nonexistent socket reported reachable")
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	if !Reachable(socket) {
		t.Error("listening socket reported unreachable")
	}
}

// serveOnce runs a minimal daemon stand-in that answers each connection
// with a scripted list of responses.
func serveOnce(t *testing.T, socket string, respond func(*api.Request) []*api.Response) {
	t.Helper()
	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		dec := api.NewDecoder(conn)
		enc := api.NewEncoder(conn)
		var req api.Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		for _, resp := range respond(&req) {
			if err := enc.Encode(resp); err != nil {
				return
			}
		}
	}()
}

func TestFindFilesStreams(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "test.sock")
	serveOnce(t, socket, func(req *api.Request) []*api.Response {
		r1, _ := api.NewFindFilesResponse(req.ID, []api.Entry{{Path: "/a"}}, false)
		r2, _ := api.NewFindFilesResponse(req.ID, []api.Entry{{Path: "/b"}}, false)
		final, _ := api.NewFindFilesResponse(req.ID, nil, true)
		return []*api.Response{r1, r2, final}
	})

	c, err := DialSocket(socket)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got []string
	err = c.FindFiles("/", "x", func(e api.Entry) {
		got = append(got, e.Path)
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("got %v, want [/a /b]", got)
	}
}

// Responses for other requests on the wire are skipped, not misattributed.
func TestFindFilesIgnoresForeignResponses(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "test.sock")
	serveOnce(t, socket, func(req *api.Request) []*api.Response {
		foreign, _ := api.NewFindFilesResponse(uuid.New(), []api.Entry{{Path: "/other"}}, true)
		mine, _ := api.NewFindFilesResponse(req.ID, []api.Entry{{Path: "/mine"}}, true)
		return []*api.Response{foreign, mine}
	})

	c, err := DialSocket(socket)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got []string
	err = c.FindFiles("/", "x", func(e api.Entry) {
		got = append(got, e.Path)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "/mine" {
		t.Errorf("got %v, want [/mine]", got)
	}
}

func TestFindFilesDaemonError(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "test.sock")
	serveOnce(t, socket, func(req *api.Request) []*api.Response {
		return []*api.Response{api.NewErrorResponse(req.ID, api.ErrorCodeHandlerFailed, "walk failed")}
	})

	c, err := DialSocket(socket)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	err = c.FindFiles("/", "x", func(api.Entry) {})
	if err == nil {
		t.Fatal("expected error response to surface")
	}
}

func TestDialSocketMissing(t *testing.T) {
	_, err := DialSocket(filepath.Join(t.TempDir(), "nope.sock"))
	if err == nil {
		t.Fatal("expected dial error")
	}
}
