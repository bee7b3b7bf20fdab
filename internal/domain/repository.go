package domain

import (
	"time"

	"github.com/google/go-github/v55/github"
)

// Organization represents a GitHub organization synchronized by the backend
type Organization struct {
	ID           string       `json:"_id"`
	Name         string       `json:"name"`
	GitHubID     string       `json:"githubId"`
	Repositories []Repository `json:"repositories,omitempty"`
}

// Repository is a GitHub repository together with its tracking state
type Repository struct {
	*github.Repository
	RecordID         string `json:"_id,omitempty"`
	OrganizationName string `json:"organization,omitempty"`
	Slug             string `json:"slug,omitempty"`
	Included         bool   `json:"included"`
}

// UserStats holds per-user activity counts for one repository
type UserStats struct {
	User              string `json:"user"`
	TotalCommits      int64  `json:"totalCommits"`
	TotalPullRequests int64  `json:"totalPullRequests"`
	TotalIssues       int64  `json:"totalIssues"`
}

// RepositoryStats is the response of POST /stats/
type RepositoryStats struct {
	RepoName     string      `json:"repoName"`
	Organization string      `json:"organization"`
	UserStats    []UserStats `json:"userStats"`
}

// IntegrationStatus describes the connected GitHub account
type IntegrationStatus struct {
	Connected       bool       `json:"connected"`
	Username        string     `json:"username,omitempty"`
	IntegrationDate *time.Time `json:"integrationDate,omitempty"`
}
