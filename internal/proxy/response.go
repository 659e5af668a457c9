package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a raw body is read to detect its type.
const sniffLen = 3072

// Response is an upstream response, decided once as JSON or raw.
type Response interface {
	StatusCode() int
}

// JSONResponse carries a decoded JSON body.
type JSONResponse struct {
	Status int
	Body   any
}

func (r JSONResponse) StatusCode() int { return r.Status }

// RawResponse streams the upstream body with selected headers.
type RawResponse struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

func (r RawResponse) StatusCode() int { return r.Status }

// ErrorEnvelope is the body sent when the upstream cannot be reached.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var rawHeaders = []string{"Content-Type", "Content-Disposition", "Content-Length"}

// classify turns resp into a Response. JSON bodies are read and decoded;
// everything else keeps the body open for streaming. A JSON content type
// with an undecodable body is relayed raw.
func classify(resp *http.Response) Response {
	if isJSON(resp.Header.Get("Content-Type")) {
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err == nil {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			var v any
			if len(bytes.TrimSpace(data)) > 0 && dec.Decode(&v) == nil {
				return JSONResponse{Status: resp.StatusCode, Body: v}
			}
		}
		h := copyHeaders(resp.Header)
		if len(data) > 0 {
			h.Set("Content-Length", strconv.Itoa(len(data)))
		}
		return RawResponse{Status: resp.StatusCode, Header: h, Body: io.NopCloser(bytes.NewReader(data))}
	}

	h := copyHeaders(resp.Header)
	if resp.ContentLength >= 0 && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	body := resp.Body
	if h.Get("Content-Type") == "" {
		body = sniff(h, body)
	}
	return RawResponse{Status: resp.StatusCode, Header: h, Body: body}
}

// Render writes r to w. It is the only place responses are serialised.
func Render(w http.ResponseWriter, r Response) error {
	switch r := r.(type) {
	case JSONResponse:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(r.Status)
		return json.NewEncoder(w).Encode(r.Body)
	case RawResponse:
		defer r.Body.Close()
		for _, k := range rawHeaders {
			if v := r.Header.Get(k); v != "" {
				w.Header().Set(k, v)
			}
		}
		w.WriteHeader(r.Status)
		_, err := io.Copy(w, r.Body)
		return err
	}
	return nil
}

func gatewayError(msg string) JSONResponse {
	return JSONResponse{Status: http.StatusBadGateway, Body: ErrorEnvelope{Success: false, Error: msg}}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func copyHeaders(src http.Header) http.Header {
	h := http.Header{}
	for _, k := range rawHeaders {
		if v := src.Get(k); v != "" {
			h.Set(k, v)
		}
	}
	return h
}

// sniff detects the content type from the first bytes of body and returns
// a reader that still yields the whole body.
func sniff(h http.Header, body io.ReadCloser) io.ReadCloser {
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(body, head)
	head = head[:n]
	h.Set("Content-Type", mimetype.Detect(head).String())
	return struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), body), body}
}
