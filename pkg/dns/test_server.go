package dns

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TestServer is a fake DoH JSON endpoint serving A records from memory.
// Mount it with httptest.NewServer and point Config.Endpoint at its URL.
type TestServer struct {
	mu         sync.RWMutex
	records    map[string]string // query name -> A record
	httpStatus int
	delay      time.Duration
	stats      TestServerStats
}

// TestServerStats tracks test server traffic
type TestServerStats struct {
	TotalQueries int64 `json:"total_queries"`
	Answered     int64 `json:"answered"`
	NXDomain     int64 `json:"nxdomain"`
}

// NewTestServer creates a new DoH test server
func NewTestServer() *TestServer {
	return &TestServer{
		records:    make(map[string]string),
		httpStatus: http.StatusOK,
	}
}

// AddARecord answers name with ip
func (ts *TestServer) AddARecord(name string, ip string) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.records[strings.ToLower(name)] = ip
	return nil
}

// AddListing lists host in zone with the usual 127.0.1.2 return code
func (ts *TestServer) AddListing(host, zone string) {
	_ = ts.AddARecord(host+"."+zone, "127.0.1.2")
}

// SetHTTPStatus makes every response use status
func (ts *TestServer) SetHTTPStatus(status int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.httpStatus = status
}

// SetDelay delays every response
func (ts *TestServer) SetDelay(d time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delay = d
}

// ServeHTTP implements the JSON API subset used by Client
func (ts *TestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.URL.Query().Get("name"))

	ts.mu.Lock()
	ts.stats.TotalQueries++
	status, delay := ts.httpStatus, ts.delay
	ip, found := ts.records[name]
	if status == http.StatusOK {
		if found {
			ts.stats.Answered++
		} else {
			ts.stats.NXDomain++
		}
	}
	ts.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp := Response{Status: rcodeNXDomain}
	if found {
		resp.Status = rcodeNoError
		resp.Answer = []Answer{{Name: name + ".", Type: 1, Data: ip}}
	}
	w.Header().Set("Content-Type", "application/dns-json")
	_ = json.NewEncoder(w).Encode(resp)
}

// GetStats returns server statistics
func (ts *TestServer) GetStats() TestServerStats {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.stats
}
