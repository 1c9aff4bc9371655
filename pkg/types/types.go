package types

import "time"

// Snapshot is one point-in-time capture of all workspace and template
// records, plus the accumulated history carried forward from the previous
// capture. Field names follow the JSON layout produced by the collector and
// consumed by the dashboard.
type Snapshot struct {
	Timestamp  time.Time   `json:"timestamp"`
	Workspaces []Workspace `json:"workspaces"`
	Templates  []Template  `json:"templates"`

	// AccumulatedUsage is the all-time usage ledger, keyed by
	// "<owner>_<template>". It survives workspace deletion. Optional.
	AccumulatedUsage map[string]UsageLedgerEntry `json:"accumulated_usage,omitempty"`

	// WorkspaceUsage records per-workspace hour readings at capture time,
	// keyed by workspace id. The next collection run diffs against it.
	WorkspaceUsage map[string]WorkspaceUsage `json:"workspace_usage_snapshot,omitempty"`

	// DailyEngagement accumulates per-date user/workspace activity sets,
	// keyed by date (YYYY-MM-DD), including deleted workspaces.
	DailyEngagement map[string]EngagementDay `json:"accumulated_daily_engagement,omitempty"`
}

// Workspace is one raw workspace record as captured from the Coder API and
// enriched by the collector (builds, usage hours, team/owner fields).
type Workspace struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	OwnerName           string     `json:"owner_name"`
	OwnerFirstName      string     `json:"owner_first_name,omitempty"`
	OwnerLastName       string     `json:"owner_last_name,omitempty"`
	TeamName            string     `json:"team_name,omitempty"`
	TemplateID          string     `json:"template_id"`
	TemplateName        string     `json:"template_name"`
	TemplateDisplayName string     `json:"template_display_name"`
	CreatedAt           time.Time  `json:"created_at"`
	LastUsedAt          *time.Time `json:"last_used_at,omitempty"`

	// Builds is the full build history, newest not guaranteed first.
	Builds []Build `json:"all_builds,omitempty"`

	// TotalUsageHours is precomputed by the collector across all builds.
	// Nil when the collector could not reach the build history.
	TotalUsageHours *float64 `json:"total_usage_hours,omitempty"`

	// ActiveHours comes from the Coder insights API. It is per USER, not
	// per workspace: every workspace of a user carries the same value.
	ActiveHours *float64 `json:"active_hours,omitempty"`
}

// Build mirrors the fields of a Coder workspace build this service reads.
type Build struct {
	ID         string         `json:"id"`
	Transition string         `json:"transition"`
	CreatedAt  time.Time      `json:"created_at"`
	Job        ProvisionerJob `json:"job"`
	Resources  []Resource     `json:"resources,omitempty"`
}

// ProvisionerJob carries the terminal status of a build job.
type ProvisionerJob struct {
	Status string `json:"status"`
}

// Resource groups the agents provisioned by a build.
type Resource struct {
	Name   string  `json:"name,omitempty"`
	Agents []Agent `json:"agents,omitempty"`
}

// Agent carries the connection and health signals of a workspace agent.
type Agent struct {
	Name             string     `json:"name,omitempty"`
	Status           string     `json:"status,omitempty"`
	LifecycleState   string     `json:"lifecycle_state,omitempty"`
	FirstConnectedAt *time.Time `json:"first_connected_at,omitempty"`
	LastConnectedAt  *time.Time `json:"last_connected_at,omitempty"`
	Apps             []App      `json:"apps,omitempty"`
}

// App is a workspace application with its reported health.
type App struct {
	Slug   string `json:"slug,omitempty"`
	Health string `json:"health,omitempty"`
}

// Template is one raw template record.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// UsageLedgerEntry is one all-time usage record for an (owner, template)
// pair. It is the only place hours and workspace ids survive deletion.
type UsageLedgerEntry struct {
	OwnerName           string    `json:"owner_name"`
	TemplateName        string    `json:"template_name"`
	TeamName            string    `json:"team_name"`
	TotalActiveHours    float64   `json:"total_active_hours"`
	TotalWorkspaceHours float64   `json:"total_workspace_hours"`
	WorkspaceIDs        []string  `json:"workspace_ids,omitempty"`
	FirstSeen           time.Time `json:"first_seen"`
	LastUpdated         time.Time `json:"last_updated"`
}

// WorkspaceUsage is the per-workspace hour reading used for delta
// accumulation between collection runs.
type WorkspaceUsage struct {
	ActiveHours    float64 `json:"active_hours"`
	WorkspaceHours float64 `json:"workspace_hours"`
	OwnerName      string  `json:"owner_name"`
	TemplateName   string  `json:"template_name"`
}

// EngagementDay holds the users and workspaces active on one calendar date.
type EngagementDay struct {
	UniqueUsers      []string `json:"unique_users"`
	ActiveWorkspaces []string `json:"active_workspaces"`
}

// Activity classifications of a workspace by days since last activity.
const (
	ActivityActive   = "active"
	ActivityInactive = "inactive"
	ActivityStale    = "stale"
)

// Workspace status values derived from the latest build.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// WorkspaceMetrics is the flat per-workspace record produced by the
// normalizer. Immutable once produced.
type WorkspaceMetrics struct {
	WorkspaceID         string    `json:"workspace_id"`
	WorkspaceName       string    `json:"workspace_name"`
	OwnerHandle         string    `json:"owner_github_handle"`
	OwnerName           string    `json:"owner_name"`
	TeamName            string    `json:"team_name"`
	TemplateID          string    `json:"template_id"`
	TemplateName        string    `json:"template_name"`
	TemplateDisplayName string    `json:"template_display_name"`
	CurrentStatus       string    `json:"current_status"`
	HealthStatus        string    `json:"health_status"`
	CreatedAt           time.Time `json:"created_at"`
	LastActive          time.Time `json:"last_active"`
	LastBuildAt         time.Time `json:"last_build_at"`
	DaysSinceCreated    int       `json:"days_since_created"`
	DaysSinceActive     int       `json:"days_since_active"`
	WorkspaceHours      float64   `json:"workspace_hours"`
	ActiveHours         float64   `json:"active_hours"`
	TotalBuilds         int       `json:"total_builds"`
	LastBuildStatus     string    `json:"last_build_status"`
	ActivityStatus      string    `json:"activity_status"`
}

// TeamMember is one distinct workspace owner inside a team aggregate.
type TeamMember struct {
	Handle         string    `json:"github_handle"`
	Name           string    `json:"name"`
	WorkspaceCount int       `json:"workspace_count"`
	LastActive     time.Time `json:"last_active"`
	ActivityStatus string    `json:"activity_status"`
}

// TeamMetrics is the per-team aggregate view.
type TeamMetrics struct {
	TeamName             string         `json:"team_name"`
	TotalWorkspaces      int            `json:"total_workspaces"`
	UniqueActiveUsers    int            `json:"unique_active_users"`
	TotalWorkspaceHours  int            `json:"total_workspace_hours"`
	TotalActiveHours     int            `json:"total_active_hours"`
	AvgWorkspaceHours    float64        `json:"avg_workspace_hours"`
	ActiveDays           int            `json:"active_days"`
	TemplateDistribution map[string]int `json:"template_distribution"`
	Members              []TeamMember   `json:"members"`
}

// TemplateMetrics is the per-template aggregate view.
type TemplateMetrics struct {
	TemplateID          string         `json:"template_id"`
	TemplateName        string         `json:"template_name"`
	TemplateDisplayName string         `json:"template_display_name"`
	TotalWorkspaces     int            `json:"total_workspaces"`
	ActiveWorkspaces    int            `json:"active_workspaces"`
	UniqueActiveUsers   int            `json:"unique_active_users"`
	TotalWorkspaceHours int            `json:"total_workspace_hours"`
	TotalActiveHours    int            `json:"total_active_hours"`
	AvgWorkspaceHours   float64        `json:"avg_workspace_hours"`
	TeamDistribution    map[string]int `json:"team_distribution"`
}

// TemplatePopularity names the most used template platform-wide.
type TemplatePopularity struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Count       int    `json:"count"`
}

// PlatformMetrics is the platform-wide aggregate view.
type PlatformMetrics struct {
	TotalWorkspaces     int                 `json:"total_workspaces"`
	TotalUsers          int                 `json:"total_users"`
	TotalTeams          int                 `json:"total_teams"`
	ActiveWorkspaces    int                 `json:"active_workspaces"`
	InactiveWorkspaces  int                 `json:"inactive_workspaces"`
	StaleWorkspaces     int                 `json:"stale_workspaces"`
	TotalTemplates      int                 `json:"total_templates"`
	MostPopularTemplate *TemplatePopularity `json:"most_popular_template"`
	HealthyRate         float64             `json:"healthy_rate"`
	AvgDaysSinceActive  float64             `json:"avg_days_since_active"`
}

// DailyEngagement is one entry of the trailing daily engagement series.
type DailyEngagement struct {
	Date             string `json:"date"`
	UniqueUsers      int    `json:"unique_users"`
	ActiveWorkspaces int    `json:"active_workspaces"`
}

// CompanyMetrics is the company-level roll-up of individually numbered
// teams (acme-1, acme-2, ...) inside a per-template team breakdown.
type CompanyMetrics struct {
	CompanyName          string         `json:"company_name"`
	Teams                []string       `json:"teams"`
	TotalWorkspaces      int            `json:"total_workspaces"`
	UniqueActiveUsers    int            `json:"unique_active_users"`
	TotalWorkspaceHours  int            `json:"total_workspace_hours"`
	TotalActiveHours     int            `json:"total_active_hours"`
	AvgWorkspaceHours    float64        `json:"avg_workspace_hours"`
	ActiveDays           int            `json:"active_days"`
	TemplateDistribution map[string]int `json:"template_distribution"`
	Members              []TeamMember   `json:"members"`
}

// AggregateResult is the complete output of one analytics run. It is the
// full contract the presentation layer consumes.
type AggregateResult struct {
	Timestamp       time.Time          `json:"timestamp"`
	Platform        PlatformMetrics    `json:"platform_metrics"`
	Teams           []TeamMetrics      `json:"team_metrics"`
	Workspaces      []WorkspaceMetrics `json:"workspace_metrics"`
	Templates       []TemplateMetrics  `json:"template_metrics"`
	DailyEngagement []DailyEngagement  `json:"daily_engagement"`
}

// Participant is one directory record mapping a handle to team and name.
type Participant struct {
	Handle    string `json:"handle"`
	TeamName  string `json:"team_name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SnapshotMeta describes a stored snapshot without its payload.
type SnapshotMeta struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	WorkspaceCount int       `json:"workspace_count"`
	TemplateCount  int       `json:"template_count"`
}
