package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"seekplan/internal/config"
)

// fakeInflux serves the health, write and query endpoints the client uses.
type fakeInflux struct {
	mu      sync.Mutex
	written []string
	queries []string
	runIDs  []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"influxdb","message":"ready for queries and writes","status":"pass","checks":[],"version":"v2.7.0","commit":"test"}`)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.written = append(f.written, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/query":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.queries = append(f.queries, string(body))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		var csv strings.Builder
		csv.WriteString("#datatype,string,long,string\r\n")
		csv.WriteString("#group,false,false,false\r\n")
		csv.WriteString("#default,_result,,\r\n")
		csv.WriteString(",result,table,_value\r\n")
		for _, id := range f.runIDs {
			csv.WriteString(",,0," + id + "\r\n")
		}
		csv.WriteString("\r\n")
		io.WriteString(w, csv.String())
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) recorded() (written, queries []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...), append([]string(nil), f.queries...)
}

func newTestClient(t *testing.T, f *fakeInflux) *InfluxDBClient {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := NewInfluxDBClient(config.DatabaseConfig{
		Host:     srv.URL,
		Name:     "runs",
		User:     "seekplan",
		Password: "token",
		Org:      "lab",
	})
	if err != nil {
		t.Fatalf("NewInfluxDBClient: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestInfluxDBClient_RunIDsForTrace(t *testing.T) {
	f := &fakeInflux{runIDs: []string{"run-a", "run-b"}}
	client := newTestClient(t, f)

	ids, err := client.RunIDsForTrace(context.Background(), "c0ffee")
	if err != nil {
		t.Fatalf("RunIDsForTrace: %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Fatalf("unexpected run ids %v", ids)
	}
	_, queries := f.recorded()
	if len(queries) != 1 || !strings.Contains(queries[0], `r.trace_checksum == \"c0ffee\"`) || !strings.Contains(queries[0], `from(bucket: \"runs\")`) {
		t.Fatalf("query does not filter by bucket and checksum: %v", queries)
	}
}

func TestInfluxDBClient_WriteRun(t *testing.T) {
	f := &fakeInflux{}
	client := newTestClient(t, f)
	_, meta, report := sampleRun()

	if err := client.WriteRun(context.Background(), meta, report, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	written, _ := f.recorded()
	body := strings.Join(written, "\n")
	if strings.Count(body, "dispatch,") != 2 || !strings.Contains(body, "simulation_meta,") {
		t.Fatalf("expected one meta and two dispatch lines, got:\n%s", body)
	}
	if !strings.Contains(body, "run_id="+meta.RunID) {
		t.Fatalf("lines are missing the run_id tag:\n%s", body)
	}
}

func TestNewInfluxDBClient_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	if _, err := NewInfluxDBClient(config.DatabaseConfig{Host: srv.URL, Name: "runs", Password: "token", Org: "lab"}); err == nil {
		t.Fatalf("expected an error for an unreachable host")
	}
}
