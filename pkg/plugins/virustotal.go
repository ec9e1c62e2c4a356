package plugins

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// VirusTotalConfig configures the VirusTotal hash lookup
type VirusTotalConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// VirusTotalScanner looks up buffer hashes in the VirusTotal file database
type VirusTotalScanner struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	stats VTStats
}

// VTStats tracks VirusTotal scanner statistics
type VTStats struct {
	HashesChecked  int64 `json:"hashes_checked"`
	MaliciousFound int64 `json:"malicious_found"`
	APICallsTotal  int64 `json:"api_calls_total"`
	APICallsFailed int64 `json:"api_calls_failed"`
	RateLimitHits  int64 `json:"rate_limit_hits"`
}

// VTResponse represents the VirusTotal file object
type VTResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			LastAnalysisStats struct {
				Harmless   int `json:"harmless"`
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
			LastAnalysisResults map[string]struct {
				Category string `json:"category"`
				Result   string `json:"result"`
			} `json:"last_analysis_results"`
		} `json:"attributes"`
	} `json:"data"`
}

// NewVirusTotalScanner creates a scanner. An API key is required.
func NewVirusTotalScanner(cfg VirusTotalConfig) (*VirusTotalScanner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("VirusTotal API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.virustotal.com/api/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &VirusTotalScanner{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Scan reports whether content is known malware. Hashes VirusTotal has never
// seen are clean.
func (vt *VirusTotalScanner) Scan(ctx context.Context, content []byte) (VirusResult, error) {
	hash := calculateSHA256(content)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vt.baseURL+"/files/"+hash, nil)
	if err != nil {
		return VirusResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Apikey", vt.apiKey)
	req.Header.Set("Accept", "application/json")

	vt.count(func(s *VTStats) {
		s.HashesChecked++
		s.APICallsTotal++
	})

	resp, err := vt.client.Do(req)
	if err != nil {
		vt.count(func(s *VTStats) { s.APICallsFailed++ })
		return VirusResult{}, fmt.Errorf("VirusTotal request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return VirusResult{Viruses: []string{}}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		vt.count(func(s *VTStats) {
			s.RateLimitHits++
			s.APICallsFailed++
		})
		return VirusResult{}, fmt.Errorf("rate limit exceeded")
	case resp.StatusCode != http.StatusOK:
		vt.count(func(s *VTStats) { s.APICallsFailed++ })
		return VirusResult{}, fmt.Errorf("API error: %d", resp.StatusCode)
	}

	var vtResp VTResponse
	if err := json.NewDecoder(resp.Body).Decode(&vtResp); err != nil {
		vt.count(func(s *VTStats) { s.APICallsFailed++ })
		return VirusResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	result := VirusResult{Viruses: detections(vtResp)}
	result.Infected = vtResp.Data.Attributes.LastAnalysisStats.Malicious > 0 || len(result.Viruses) > 0
	if result.Infected {
		vt.count(func(s *VTStats) { s.MaliciousFound++ })
	}
	return result, nil
}

// detections returns the distinct malware names reported by engines
func detections(resp VTResponse) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, r := range resp.Data.Attributes.LastAnalysisResults {
		if r.Category != "malicious" || r.Result == "" || seen[r.Result] {
			continue
		}
		seen[r.Result] = true
		names = append(names, r.Result)
	}
	sort.Strings(names)
	return names
}

func (vt *VirusTotalScanner) count(fn func(*VTStats)) {
	vt.mu.Lock()
	fn(&vt.stats)
	vt.mu.Unlock()
}

// GetStats returns scanner statistics
func (vt *VirusTotalScanner) GetStats() VTStats {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	return vt.stats
}

// calculateSHA256 calculates SHA256 hash of content
func calculateSHA256(content []byte) string {
	hash := sha256.Sum256(content)
	return fmt.Sprintf("%x", hash)
}
