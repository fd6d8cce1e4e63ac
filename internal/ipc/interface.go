/*
Package ipc answers verse queries over a msgpack request/response stream,
normally the stdin and stdout of "worship serve".

Each request is one msgpack map carrying an ID and an action. Every request
gets exactly one response with the same ID, in order:

	{"id": "r1", "a": "lookup", "q": "John 3:16"}
	{"id": "r1", "ok": true, "f": true, "ref": "John 3:16", "x": "For God so loved...", "t": 12}

A miss is not an error; the response has "f" false and up to the configured
number of suggestions in "s":

	{"id": "r2", "a": "lookup", "q": "John 3:99"}
	{"id": "r2", "ok": true, "ref": "John 3:99", "s": ["John 3:1", "John 3:2"], "t": 9}

Actions are lookup, suggest, version, versions and health. Failed requests
answer with "ok" false, an error string and a numeric code.
*/
package ipc

// Actions understood by the server.
const (
	ActionLookup   = "lookup"
	ActionSuggest  = "suggest"
	ActionVersion  = "version"
	ActionVersions = "versions"
	ActionHealth   = "health"
)

// Error codes carried in Response.Code.
const (
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeInternal   = 500
)

// Request is one client message. Query carries a free-text reference for
// lookup; Book, Chapter and Verse may be sent instead. Version names a
// version or source file for the version action.
type Request struct {
	ID      string `msgpack:"id"`
	Action  string `msgpack:"a"`
	Query   string `msgpack:"q,omitempty"`
	Book    string `msgpack:"b,omitempty"`
	Chapter int    `msgpack:"c,omitempty"`
	Verse   int    `msgpack:"v,omitempty"`
	Version string `msgpack:"ver,omitempty"`
}

// Response answers one Request.
type Response struct {
	ID          string   `msgpack:"id"`
	OK          bool     `msgpack:"ok"`
	Found       bool     `msgpack:"f,omitempty"`
	Ref         string   `msgpack:"ref,omitempty"`
	Text        string   `msgpack:"x,omitempty"`
	Suggestions []string `msgpack:"s,omitempty"`
	Version     string   `msgpack:"ver,omitempty"`
	Versions    []string `msgpack:"vs,omitempty"`
	Verses      int      `msgpack:"n,omitempty"`
	Error       string   `msgpack:"e,omitempty"`
	Code        int      `msgpack:"code,omitempty"`
	TimeTaken   int64    `msgpack:"t"` // microseconds
}
