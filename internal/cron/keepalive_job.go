package cron

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grupofy/grupofy-backend/pkg/logger"
)

const keepAliveTimeout = 10 * time.Second

type KeepAliveJobParams struct {
	Logger  *logger.Logger
	BaseURL string
	Client  *http.Client
}

// keepAliveJob pings our own public liveness endpoint so free-tier hosts do
// not idle the process between webhooks.
type keepAliveJob struct {
	logg   *logger.Logger
	url    string
	client *http.Client
}

func NewKeepAliveJob(params KeepAliveJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.BaseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: keepAliveTimeout}
	}
	return &keepAliveJob{
		logg:   params.Logger,
		url:    strings.TrimRight(params.BaseURL, "/") + "/health/live",
		client: client,
	}, nil
}

func (j *keepAliveJob) Name() string { return "keepalive" }

func (j *keepAliveJob) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return fmt.Errorf("build keepalive request: %w", err)
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("keepalive ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("keepalive ping returned %d", resp.StatusCode)
	}
	return nil
}
