// Package testutil provides testing utilities for the storefront CDN client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockCDNResponse defines the behavior for a mock CDN endpoint response.
type MockCDNResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCDN is a configurable mock CDN server for testing.
type MockCDN struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	requestCount      int
	lastRequestHeader http.Header
}

// NewMockCDN creates a new mock CDN server.
func NewMockCDN() *MockCDN {
	mock := &MockCDN{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.counts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "not found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCDN) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCDN) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCDN) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.counts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCDN) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCDN) SetResponse(path string, resp MockCDNResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetSequence serves the given responses in order, repeating the last one.
func (m *MockCDN) SetSequence(path string, responses ...MockCDNResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockCDN) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockCDN) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockCDN) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// NewEnvelopeResponse wraps data in a success envelope.
func NewEnvelopeResponse(data any) MockCDNResponse {
	payload, _ := json.Marshal(map[string]any{
		"success": true,
		"data":    data,
	})
	return MockCDNResponse{
		StatusCode: http.StatusOK,
		Body:       string(payload),
	}
}

// NewRawResponse returns data as a bare JSON body.
func NewRawResponse(body string) MockCDNResponse {
	return MockCDNResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	}
}

// NewFailedEnvelopeResponse creates a 200 OK with a success:false envelope.
func NewFailedEnvelopeResponse(message string) MockCDNResponse {
	payload, _ := json.Marshal(map[string]any{
		"success": false,
		"message": message,
	})
	return MockCDNResponse{
		StatusCode: http.StatusOK,
		Body:       string(payload),
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockCDNResponse {
	return MockCDNResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockCDNResponse {
	return MockCDNResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
	}
}
