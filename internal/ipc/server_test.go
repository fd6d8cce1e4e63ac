package ipc

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/FocuswithJustin/worship-direct/core/cache"
	"github.com/FocuswithJustin/worship-direct/core/lookup"
	"github.com/FocuswithJustin/worship-direct/internal/library"
	"github.com/FocuswithJustin/worship-direct/internal/logging"
)

func init() {
	logging.InitLoggerTo(io.Discard, logging.LevelError, logging.FormatText)
}

func newTestServer(t *testing.T, in io.Reader, out io.Writer) *Server {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"kjv.json": `{"John 3:16": "# For God so loved the world...", "John 3:17": "For God sent not his Son..."}`,
		"asv.json": `{"resultset":{"row":[{"field":[1, 1, 1, 1, "In the beginning God created the heavens and the earth."]}]}}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	lib := library.New(dir, nil, cache.DefaultConfig())
	loaded, err := lib.Open(context.Background(), "kjv")
	if err != nil {
		t.Fatalf("Open(kjv) error: %v", err)
	}
	return NewServer(lookup.New(loaded.Index, 5), lib, "kjv", in, out)
}

func encodeRequests(t *testing.T, reqs ...Request) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	for _, req := range reqs {
		if err := enc.Encode(req); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func decodeResponses(t *testing.T, r io.Reader) []Response {
	t.Helper()
	dec := msgpack.NewDecoder(r)
	var out []Response
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			if err == io.EOF {
				return out
			}
			t.Fatalf("decode response: %v", err)
		}
		out = append(out, resp)
	}
}

func TestServe(t *testing.T) {
	in := encodeRequests(t,
		Request{ID: "1", Action: ActionHealth},
		Request{ID: "2", Action: ActionLookup, Query: "john 3:16"},
		Request{ID: "3", Action: ActionLookup, Query: "John 3:99"},
		Request{ID: "4", Action: ActionLookup, Book: "John", Chapter: 3, Verse: 17},
		Request{ID: "5", Action: ActionLookup, Query: "John"},
		Request{ID: "6", Action: ActionSuggest, Book: "john"},
		Request{ID: "7", Action: "delete"},
	)
	var out bytes.Buffer
	s := newTestServer(t, in, &out)

	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	if s.Requests() != 7 {
		t.Errorf("Requests() = %d, want 7", s.Requests())
	}

	got := decodeResponses(t, &out)
	if len(got) != 7 {
		t.Fatalf("got %d responses, want 7", len(got))
	}
	for i, resp := range got {
		if want := string(rune('1' + i)); resp.ID != want {
			t.Errorf("response %d id = %q, want %q", i, resp.ID, want)
		}
	}

	tests := []struct {
		name string
		got  Response
		want Response
	}{
		{"health", got[0], Response{OK: true, Version: "kjv"}},
		{"found", got[1], Response{OK: true, Found: true, Ref: "John 3:16", Text: "For God so loved the world..."}},
		{"miss", got[2], Response{OK: true, Ref: "John 3:99", Suggestions: []string{"John 3:16", "John 3:17"}}},
		{"parts", got[3], Response{OK: true, Found: true, Ref: "John 3:17", Text: "For God sent not his Son..."}},
		{"malformed", got[4], Response{Code: CodeBadRequest}},
		{"suggest", got[5], Response{OK: true, Suggestions: []string{"John 3:16", "John 3:17"}}},
		{"unknown action", got[6], Response{Code: CodeBadRequest}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.got
			if r.OK != tt.want.OK || r.Found != tt.want.Found || r.Ref != tt.want.Ref ||
				r.Text != tt.want.Text || r.Version != tt.want.Version || r.Code != tt.want.Code {
				t.Errorf("response = %+v, want %+v", r, tt.want)
			}
			if !reflect.DeepEqual(r.Suggestions, tt.want.Suggestions) {
				t.Errorf("suggestions = %v, want %v", r.Suggestions, tt.want.Suggestions)
			}
			if !r.OK && r.Error == "" {
				t.Error("failed response should carry an error message")
			}
		})
	}
}

func TestServeVersionSwitch(t *testing.T) {
	in := encodeRequests(t,
		Request{ID: "a", Action: ActionVersions},
		Request{ID: "b", Action: ActionVersion, Version: "asv"},
		Request{ID: "c", Action: ActionLookup, Query: "Genesis 1:1"},
		Request{ID: "d", Action: ActionVersion},
		Request{ID: "e", Action: ActionVersion, Version: "web"},
		Request{ID: "f", Action: ActionLookup, Query: "John 3:16"},
	)
	var out bytes.Buffer
	if err := newTestServer(t, in, &out).Serve(context.Background()); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	got := decodeResponses(t, &out)
	if len(got) != 6 {
		t.Fatalf("got %d responses, want 6", len(got))
	}

	if !reflect.DeepEqual(got[0].Versions, []string{"asv", "kjv"}) || got[0].Version != "kjv" {
		t.Errorf("versions = %+v", got[0])
	}
	if !got[1].OK || got[1].Version != "asv" || got[1].Verses != 1 {
		t.Errorf("switch = %+v", got[1])
	}
	if !got[2].Found || got[2].Text != "In the beginning God created the heavens and the earth." {
		t.Errorf("lookup after switch = %+v", got[2])
	}
	if got[3].Version != "asv" || got[3].Verses != 1 {
		t.Errorf("current version = %+v", got[3])
	}
	if got[4].OK || got[4].Code != CodeNotFound {
		t.Errorf("unknown version = %+v, want code %d", got[4], CodeNotFound)
	}
	// A failed switch keeps the previous version.
	if got[5].Found || got[5].Ref != "John 3:16" {
		t.Errorf("lookup after failed switch = %+v", got[5])
	}
}

func TestServeInvalidInput(t *testing.T) {
	var out bytes.Buffer
	s := newTestServer(t, bytes.NewReader([]byte{0xc1}), &out)

	if err := s.Serve(context.Background()); err == nil {
		t.Fatal("Serve() should fail on a message that is not msgpack")
	}
	got := decodeResponses(t, &out)
	if len(got) != 1 || got[0].OK || got[0].Code != CodeBadRequest {
		t.Errorf("responses = %+v, want one bad request", got)
	}
}

func TestServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := encodeRequests(t, Request{ID: "1", Action: ActionHealth})
	if err := newTestServer(t, in, io.Discard).Serve(ctx); err != context.Canceled {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
}

func TestHandleWithoutLibrary(t *testing.T) {
	s := NewServer(lookup.New(nil, 5), nil, "", &bytes.Buffer{}, io.Discard)
	ctx := context.Background()

	tests := []struct {
		req  Request
		code int
	}{
		{Request{Action: ActionVersions}, CodeBadRequest},
		{Request{Action: ActionVersion, Version: "kjv"}, CodeBadRequest},
		{Request{Action: ActionLookup, Query: "John 3:16"}, CodeNotFound},
		{Request{Action: ActionSuggest}, CodeBadRequest},
		{Request{Action: ActionSuggest, Book: "John", Chapter: -1}, CodeBadRequest},
	}
	for _, tt := range tests {
		if resp := s.Handle(ctx, &tt.req); resp.OK || resp.Code != tt.code {
			t.Errorf("Handle(%+v) = %+v, want code %d", tt.req, resp, tt.code)
		}
	}
	if resp := s.Handle(ctx, &Request{Action: ActionVersion}); !resp.OK || resp.Verses != 0 {
		t.Errorf("version without index = %+v", resp)
	}
}
