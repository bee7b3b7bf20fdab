package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
)

// Table prints a plain table
func Table(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// Collections prints the collection list
func Collections(w io.Writer, collections []domain.CollectionMetadata) {
	rows := make([][]string, 0, len(collections))
	for _, c := range collections {
		rows = append(rows, []string{c.Name, strconv.Itoa(c.TotalDocuments)})
	}
	Table(w, []string{"Collection", "Documents"}, rows)
}

// Facets prints facet values with their counts
func Facets(w io.Writer, facets map[string][]domain.FacetItem) {
	result := domain.DataGridResult{Facets: facets}
	rows := [][]string{}
	for _, name := range result.FacetNames() {
		for _, item := range facets[name] {
			rows = append(rows, []string{name, item.ID, strconv.Itoa(item.Count)})
		}
	}
	if len(rows) == 0 {
		return
	}
	Table(w, []string{"Facet", "Value", "Count"}, rows)
}

// UserStats prints per-user activity totals
func UserStats(w io.Writer, stats []domain.UserStats) {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.User,
			fmt.Sprintf("%d", s.TotalCommits),
			fmt.Sprintf("%d", s.TotalPullRequests),
			fmt.Sprintf("%d", s.TotalIssues),
		})
	}
	Table(w, []string{"User", "Commits", "PRs", "Issues"}, rows)
}

// Repositories prints repositories with their tracking flag
func Repositories(w io.Writer, repos []domain.Repository) {
	rows := make([][]string, 0, len(repos))
	for _, r := range repos {
		included := "no"
		if r.Included {
			included = "yes"
		}
		name := r.GetFullName()
		if name == "" {
			name = r.GetName()
		}
		rows = append(rows, []string{r.RecordID, name, r.GetLanguage(), strconv.Itoa(r.GetStargazersCount()), included})
	}
	Table(w, []string{"ID", "Repository", "Language", "Stars", "Included"}, rows)
}

// Issue prints the summary of an issue detail payload
func Issue(w io.Writer, details *domain.IssueDetails) {
	if details == nil || details.Issue == nil {
		fmt.Fprintln(w, "No issue details.")
		return
	}
	issue := details.Issue
	Table(w, []string{"Field", "Value"}, [][]string{
		{"Number", strconv.Itoa(issue.GetNumber())},
		{"Title", issue.GetTitle()},
		{"State", issue.GetState()},
		{"Author", issue.GetUser().GetLogin()},
		{"Comments", strconv.Itoa(len(details.Comments))},
		{"Events", strconv.Itoa(len(details.Events))},
		{"Timeline", strconv.Itoa(len(details.Timeline))},
		{"Related PRs", strconv.Itoa(len(details.RelatedPRs))},
	})
}

// Organizations prints the organizations of the connected account
func Organizations(w io.Writer, orgs []domain.Organization) {
	rows := make([][]string, 0, len(orgs))
	for _, o := range orgs {
		rows = append(rows, []string{o.ID, o.Name, o.GitHubID, strconv.Itoa(len(o.Repositories))})
	}
	Table(w, []string{"ID", "Organization", "GitHub ID", "Repositories"}, rows)
}
