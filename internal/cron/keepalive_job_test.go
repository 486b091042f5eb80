package cron

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grupofy/grupofy-backend/pkg/logger"
)

func TestKeepAliveJobPingsLivenessEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	job, err := NewKeepAliveJob(KeepAliveJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		BaseURL: server.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewKeepAliveJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotPath != "/health/live" {
		t.Fatalf("expected /health/live, got %s", gotPath)
	}
}

func TestKeepAliveJobFailsOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	job, err := NewKeepAliveJob(KeepAliveJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("NewKeepAliveJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error for 503")
	}
}
