package ipc

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/FocuswithJustin/worship-direct/core/errors"
	"github.com/FocuswithJustin/worship-direct/core/lookup"
	"github.com/FocuswithJustin/worship-direct/internal/library"
	"github.com/FocuswithJustin/worship-direct/internal/logging"
)

// Versions opens and lists versions; *library.Library implements it.
type Versions interface {
	Open(ctx context.Context, src string) (*library.Loaded, error)
	Versions() ([]library.Version, error)
}

// Server answers requests from one reader and writes responses to one writer.
type Server struct {
	svc     *lookup.Service
	lib     Versions
	version string
	dec     *msgpack.Decoder
	enc     *msgpack.Encoder
	count   int
}

// NewServer returns a Server over svc, which answers for the version named
// current. lib may be nil, disabling the version actions.
func NewServer(svc *lookup.Service, lib Versions, current string, r io.Reader, w io.Writer) *Server {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return &Server{
		svc:     svc,
		lib:     lib,
		version: current,
		dec:     msgpack.NewDecoder(r),
		enc:     enc,
	}
}

// Requests returns how many requests have been answered.
func (s *Server) Requests() int { return s.count }

// Serve answers requests until the input ends or ctx is cancelled. A clean
// end of input returns nil. A message that is not a msgpack request gets an
// error response and ends the session, since the stream position is lost.
func (s *Server) Serve(ctx context.Context) error {
	logging.DebugContext(ctx, "ipc_started", "version", s.version)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if err == io.EOF {
				logging.DebugContext(ctx, "ipc_closed", "requests", s.count)
				return nil
			}
			s.send(&Response{Error: "invalid request: " + err.Error(), Code: CodeBadRequest})
			return errors.NewMalformed("msgpack", "invalid request", err)
		}

		resp := s.Handle(ctx, &req)
		s.count++
		if err := s.send(resp); err != nil {
			return errors.NewIO("write", "response", err)
		}
	}
}

// Handle answers one request.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	start := time.Now()
	resp, err := s.dispatch(ctx, req)
	if err != nil {
		resp = &Response{Error: err.Error(), Code: codeFor(err)}
		logging.DebugContext(ctx, "ipc_error", "id", req.ID, "action", req.Action, "error", err)
	} else {
		resp.OK = true
	}
	resp.ID = req.ID
	resp.TimeTaken = time.Since(start).Microseconds()
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *Request) (*Response, error) {
	switch req.Action {
	case ActionHealth:
		return &Response{Version: s.version}, nil
	case ActionLookup:
		return s.lookup(ctx, req)
	case ActionSuggest:
		if req.Book == "" {
			return nil, errors.NewReference("", "book is required")
		}
		if req.Chapter < 0 {
			return nil, errors.NewReference(fmt.Sprintf("%s %d", req.Book, req.Chapter), "chapter must not be negative")
		}
		refs, err := s.svc.Suggest(req.Book, req.Chapter)
		if err != nil {
			return nil, err
		}
		resp := &Response{}
		for _, ref := range refs {
			resp.Suggestions = append(resp.Suggestions, ref.String())
		}
		return resp, nil
	case ActionVersion:
		return s.switchVersion(ctx, req.Version)
	case ActionVersions:
		if s.lib == nil {
			return nil, errors.NewUnsupported(ActionVersions, "no data directory")
		}
		versions, err := s.lib.Versions()
		if err != nil {
			return nil, err
		}
		resp := &Response{Version: s.version}
		for _, v := range versions {
			resp.Versions = append(resp.Versions, v.Name)
		}
		return resp, nil
	default:
		return nil, errors.NewUnsupported(fmt.Sprintf("action %q", req.Action), "unknown action")
	}
}

func (s *Server) lookup(ctx context.Context, req *Request) (*Response, error) {
	var (
		res *lookup.Result
		err error
	)
	if req.Query != "" {
		res, err = s.svc.Lookup(req.Query)
	} else {
		res, err = s.svc.LookupParts(req.Book, req.Chapter, req.Verse)
	}
	if err != nil {
		return nil, err
	}

	resp := &Response{Found: res.Found, Ref: res.Ref.String(), Text: res.Text}
	for _, ref := range res.Suggestions {
		resp.Suggestions = append(resp.Suggestions, ref.String())
	}
	if !res.Found {
		logging.LookupMiss(ctx, resp.Ref, len(res.Suggestions))
	}
	return resp, nil
}

func (s *Server) switchVersion(ctx context.Context, name string) (*Response, error) {
	if name == "" {
		idx := s.svc.Index()
		resp := &Response{Version: s.version}
		if idx != nil {
			resp.Verses = idx.Len()
		}
		return resp, nil
	}
	if s.lib == nil {
		return nil, errors.NewUnsupported(ActionVersion, "no data directory")
	}
	loaded, err := s.lib.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	s.svc.Swap(loaded.Index)
	s.version = name
	return &Response{Version: name, Verses: loaded.Index.Len()}, nil
}

func (s *Server) send(resp *Response) error {
	return s.enc.Encode(resp)
}

// codeFor maps an error kind to a response code.
func codeFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, errors.ErrReferenceMalformed),
		errors.Is(err, errors.ErrUnsupported),
		errors.Is(err, errors.ErrUnknownBook):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
