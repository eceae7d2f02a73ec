package qgenda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hferris/dutywatch/internal/models"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func scheduleServer(t *testing.T, entries []Entry) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedule" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("startDate") == "" || r.URL.Query().Get("endDate") == "" {
			http.Error(w, "missing range", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(entries)
	}))
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error for missing base url")
	}
	if _, err := New(Opts{BaseURL: "http://x", ClientID: "id"}); err == nil {
		t.Error("expected error for missing secret")
	}
	if _, err := New(Opts{BaseURL: "http://x", ClientID: "id", ClientSecret: "s"}); err == nil {
		t.Error("expected error for missing token url")
	}
}

func TestFetchSchedule(t *testing.T) {
	srv := scheduleServer(t, []Entry{
		{ID: "q-1", StaffID: "prov-a", StartDate: "2024-06-01", EndDate: "2024-06-05", TaskName: "night float"},
		{ID: "q-2", StaffID: "prov-b", StartDate: "2024-06-06", EndDate: "2024-06-08"},
	})
	defer srv.Close()

	c, err := New(Opts{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entries, err := c.FetchSchedule(context.Background(), day(t, "2024-06-01"), day(t, "2024-06-30"))
	if err != nil {
		t.Fatalf("FetchSchedule: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].ID != "q-1" || entries[0].TaskName != "night float" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestFetchSchedule_InvertedRange(t *testing.T) {
	c, _ := New(Opts{BaseURL: "http://unused", HTTPClient: http.DefaultClient})
	_, err := c.FetchSchedule(context.Background(), day(t, "2024-06-30"), day(t, "2024-06-01"))
	if err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestFetchSchedule_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New(Opts{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.FetchSchedule(context.Background(), day(t, "2024-06-01"), day(t, "2024-06-02"))
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestMapEntry(t *testing.T) {
	shift, err := MapEntry(Entry{
		ID: "q-1", StaffID: "prov-a",
		StartDate: "2024-06-01", EndDate: "2024-06-05",
		TaskName: "night float",
	})
	if err != nil {
		t.Fatalf("MapEntry: %v", err)
	}
	if shift.ProviderID != "prov-a" {
		t.Errorf("provider = %s", shift.ProviderID)
	}
	if shift.Source != models.SourceImported {
		t.Errorf("source = %s, want imported", shift.Source)
	}
	if shift.ExternalID == nil || *shift.ExternalID != "q-1" {
		t.Errorf("external id = %v, want q-1", shift.ExternalID)
	}
	if !shift.StartDate.Equal(day(t, "2024-06-01")) || !shift.EndDate.Equal(day(t, "2024-06-05")) {
		t.Errorf("dates = %s..%s", shift.StartDate, shift.EndDate)
	}
}

func TestMapEntry_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		entry Entry
	}{
		{"no id", Entry{StaffID: "prov-a", StartDate: "2024-06-01", EndDate: "2024-06-02"}},
		{"no staff", Entry{ID: "q-1", StartDate: "2024-06-01", EndDate: "2024-06-02"}},
		{"bad start", Entry{ID: "q-1", StaffID: "prov-a", StartDate: "June 1st", EndDate: "2024-06-02"}},
		{"end before start", Entry{ID: "q-1", StaffID: "prov-a", StartDate: "2024-06-05", EndDate: "2024-06-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MapEntry(tc.entry); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}
