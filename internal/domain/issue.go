package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v55/github"
)

// IssueRef identifies an issue by number within org/repo
type IssueRef struct {
	Number int    `json:"issueNumber"`
	Org    string `json:"org"`
	Repo   string `json:"repoName"`
}

// Valid reports whether all three parts are set
func (r IssueRef) Valid() bool {
	return r.Number > 0 && r.Org != "" && r.Repo != ""
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Org, r.Repo, r.Number)
}

// Params encodes the reference as navigation parameters
func (r IssueRef) Params() url.Values {
	params := url.Values{}
	params.Set("issueNumber", strconv.Itoa(r.Number))
	params.Set("org", r.Org)
	params.Set("repoName", r.Repo)
	return params
}

// ParseIssueRef reads a reference back out of navigation parameters
func ParseIssueRef(params url.Values) (IssueRef, error) {
	number, err := strconv.Atoi(params.Get("issueNumber"))
	if err != nil {
		return IssueRef{}, fmt.Errorf("invalid issue number %q", params.Get("issueNumber"))
	}
	ref := IssueRef{Number: number, Org: params.Get("org"), Repo: params.Get("repoName")}
	if !ref.Valid() {
		return IssueRef{}, fmt.Errorf("incomplete issue reference %s", ref)
	}
	return ref, nil
}

// SplitRepoID splits a composite "org/repo" identifier. Anything other than
// exactly two non-empty parts is rejected.
func SplitRepoID(id string) (org, repo string, ok bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IssueDetails is the drill-down payload for a single issue
type IssueDetails struct {
	Issue      *github.Issue          `json:"issueDetails"`
	Comments   []*github.IssueComment `json:"issueComments"`
	Events     []*github.IssueEvent   `json:"issueEvents"`
	Timeline   []*github.Timeline     `json:"issueTimelines"`
	RelatedPRs []*github.PullRequest  `json:"relatedPRs"`
}
