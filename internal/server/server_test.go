package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pyvet/pyvet/pkg/validate"
)

func staticRefresh(report *validate.Report, err error) RefreshFunc {
	return func(ctx context.Context) (*validate.Report, error) {
		return report, err
	}
}

func TestReportNotReady(t *testing.T) {
	s := New(":0", "", staticRefresh(nil, errors.New("boom")))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/report")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestReportAndHealth(t *testing.T) {
	report := &validate.Report{Records: []validate.Record{
		{Explain: validate.Missing},
	}}
	s := New(":0", "", staticRefresh(report, nil))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/report")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var digests []validate.RecordDigest
	if err := json.NewDecoder(resp.Body).Decode(&digests); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(digests) != 1 || digests[0].Explain != validate.Missing {
		t.Errorf("digests = %+v, want one Missing record", digests)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("healthz status = %d, want %d", health.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestHealthPasses(t *testing.T) {
	report := &validate.Report{Records: []validate.Record{
		{Explain: validate.Matched},
	}}
	s := New(":0", "", staticRefresh(report, nil))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRefreshKeepsLastReport(t *testing.T) {
	report := &validate.Report{}
	calls := 0
	s := New(":0", "", func(ctx context.Context) (*validate.Report, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("scan failed")
		}
		return report, nil
	})

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("second Refresh() error = nil, want error")
	}
	if s.Report() != report {
		t.Error("Report() lost the last successful report")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	report := &validate.Report{Records: []validate.Record{
		{Explain: validate.Matched},
		{Explain: validate.Misdefined},
	}}
	s := New(":0", "", staticRefresh(report, nil))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `pyvet_validations_total{outcome="fail"} 1`) {
		t.Errorf("metrics missing fail counter:\n%s", body)
	}
	if !strings.Contains(body, `pyvet_validation_records{explain="Misdefined"} 1`) {
		t.Errorf("metrics missing record gauge:\n%s", body)
	}
}
