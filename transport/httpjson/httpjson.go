// Package httpjson is a transport.Transport over net/http speaking JSON.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/IvanBrykalov/rescache/transport"
)

// maxErrorBody caps how much of a failed response ends up in StatusError.
const maxErrorBody = 4 << 10

// Transport sends requests to BaseURL + Request.Addr.
type Transport struct {
	// BaseURL is prefixed to every address, e.g. "https://api.example.com".
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Header is added to every request.
	Header http.Header
}

// New returns a Transport for baseURL.
func New(baseURL string, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  client,
		Header:  make(http.Header),
	}
}

// Do encodes the body (after request transforms), performs the call, decodes
// the JSON answer and runs the response transforms over it.
func (t *Transport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	hr, err := t.httpRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &transport.StatusError{Method: req.Method, Addr: req.Addr, Code: res.StatusCode, Body: string(raw)}
	}

	var data any
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&data); err != nil {
			return nil, fmt.Errorf("httpjson: decode %s %s: %w", req.Method, req.Addr, err)
		}
	}
	data, err = transport.ApplyResponse(data, res.Header, req.TransformResponse)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Status: res.StatusCode, Header: res.Header, Data: data}, nil
}

// httpRequest builds the populated http.Request.
func (t *Transport) httpRequest(ctx context.Context, req *transport.Request) (*http.Request, error) {
	header := make(http.Header)
	for k, v := range t.Header {
		header[k] = v
	}
	for k, v := range req.Header {
		header[k] = v
	}
	header.Set("Accept", "application/json")
	if !req.Cache {
		header.Set("Cache-Control", "no-cache")
	}

	body, err := transport.ApplyRequest(req.Body, header, req.TransformRequest)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		enc, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpjson: encode %s %s: %w", req.Method, req.Addr, err)
		}
		rd = bytes.NewReader(enc)
		header.Set("Content-Type", "application/json")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hr, err := http.NewRequestWithContext(ctx, method, t.BaseURL+req.Addr, rd)
	if err != nil {
		return nil, err
	}
	hr.Header = header
	return hr, nil
}
