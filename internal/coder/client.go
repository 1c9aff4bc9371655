package coder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vectorinstitute/workspace-insights/internal/metrics"
	"github.com/vectorinstitute/workspace-insights/internal/util"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

const sessionTokenHeader = "Coder-Session-Token"

const workspacePageSize = 100

// Client talks to a Coder deployment's v2 API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(base, token string) *Client {
	return &Client{
		base:  trim(base),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func trim(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	err := util.Retry(15*time.Second, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set(sessionTokenHeader, c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return true, fmt.Errorf("coder: %s: status %s", path, resp.Status)
		}
		if resp.StatusCode >= 300 {
			return false, fmt.Errorf("coder: %s: status %s", path, resp.Status)
		}
		return false, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		metrics.CoderAPIErrorsTotal.Inc()
	}
	return err
}

type workspacesPage struct {
	Workspaces []types.Workspace `json:"workspaces"`
	Count      int               `json:"count"`
}

// ListWorkspaces pages through every workspace on the deployment.
func (c *Client) ListWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	var all []types.Workspace
	for offset := 0; ; offset += workspacePageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(workspacePageSize))
		q.Set("offset", strconv.Itoa(offset))
		var page workspacesPage
		if err := c.get(ctx, "/api/v2/workspaces", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Workspaces...)
		if len(page.Workspaces) < workspacePageSize {
			return all, nil
		}
	}
}

// ListBuilds returns the build history for one workspace, newest first.
func (c *Client) ListBuilds(ctx context.Context, workspaceID string) ([]types.Build, error) {
	var builds []types.Build
	if err := c.get(ctx, "/api/v2/workspaces/"+workspaceID+"/builds", nil, &builds); err != nil {
		return nil, err
	}
	return builds, nil
}

// ListTemplates returns all templates in the default organization.
func (c *Client) ListTemplates(ctx context.Context) ([]types.Template, error) {
	var templates []types.Template
	if err := c.get(ctx, "/api/v2/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

type userActivityReport struct {
	Report struct {
		Users []struct {
			Username string `json:"username"`
			Seconds  int64  `json:"seconds"`
		} `json:"users"`
	} `json:"report"`
}

// UserActivityHours returns per-user usage hours from the insights API for
// the window [start, end].
func (c *Client) UserActivityHours(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	q := url.Values{}
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	var report userActivityReport
	if err := c.get(ctx, "/api/v2/insights/user-activity", q, &report); err != nil {
		return nil, err
	}
	hours := make(map[string]float64, len(report.Report.Users))
	for _, u := range report.Report.Users {
		hours[u.Username] = float64(u.Seconds) / 3600
	}
	return hours, nil
}
