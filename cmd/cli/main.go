package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-data-explorer/internal/aggregator"
	"github.com/kurihiro0119/github-data-explorer/internal/config"
	"github.com/kurihiro0119/github-data-explorer/internal/dashboard"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/grid"
	"github.com/kurihiro0119/github-data-explorer/internal/logger"
	"github.com/kurihiro0119/github-data-explorer/internal/render"
	"github.com/kurihiro0119/github-data-explorer/internal/storage"
	"github.com/kurihiro0119/github-data-explorer/internal/storage/postgres"
	"github.com/kurihiro0119/github-data-explorer/internal/storage/sqlite"
	"github.com/kurihiro0119/github-data-explorer/internal/store"
	"github.com/kurihiro0119/github-data-explorer/pkg/client"
)

var (
	outputJSON bool
	offline    bool

	page        int
	pageSize    int
	facetFlags  []string
	startDate   string
	endDate     string
	filterExpr  string
	sortField   string
	sortDesc    bool
	detailIndex int

	exportFormat string
	exportOut    string

	cachedStats bool
)

var rootCmd = &cobra.Command{
	Use:   "github-explorer",
	Short: "GitHub data explorer",
	Long: `A CLI for browsing the GitHub data synchronized by the explorer backend.

Collections are paginated, filtered by facets and date range, searched by
keyword and exported. Repository tracking and per-user stats are managed
through the connected GitHub integration.`,
	SilenceUsage: true,
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

var browseCmd = &cobra.Command{
	Use:   "browse [collection]",
	Short: "Show a page of a collection",
	Long: `Show one page of a collection with the given filters applied.

Without a collection name the first collection is opened. --filter narrows
the loaded page with an expression such as "[user.login] == 'octocat'".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search across all collections",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var relatedCmd = &cobra.Command{
	Use:   "related [actor]",
	Short: "Show the records related to a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

var issueCmd = &cobra.Command{
	Use:   "issue [org/repo] [number]",
	Short: "Show the details of an issue",
	Args:  cobra.ExactArgs(2),
	RunE:  runIssue,
}

var exportCmd = &cobra.Command{
	Use:   "export [collection]",
	Short: "Export a collection with the given filters",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "Manage the GitHub integration",
}

var integrationStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a GitHub account is connected",
	Args:  cobra.NoArgs,
	RunE:  runIntegrationStatus,
}

var integrationConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Print the URL that starts the GitHub authorization flow",
	Args:  cobra.NoArgs,
	RunE:  runIntegrationConnect,
}

var integrationRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Disconnect the GitHub account",
	Args:  cobra.NoArgs,
	RunE:  runIntegrationRemove,
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List the organizations of the connected account",
	Args:  cobra.NoArgs,
	RunE:  runOrgs,
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List the repositories of the connected account",
	Args:  cobra.NoArgs,
	RunE:  runRepos,
}

var reposIncludeCmd = &cobra.Command{
	Use:   "include [id]",
	Short: "Track a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetInclusion(args[0], true)
	},
}

var reposExcludeCmd = &cobra.Command{
	Use:   "exclude [id]",
	Short: "Stop tracking a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetInclusion(args[0], false)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [org/repo...]",
	Short: "Show per-user stats across repositories",
	Long: `Show commits, pull requests and issues per user summed across repositories.

Without arguments every tracked repository is used. --cached sums the stats
stored in the local cache instead of asking the backend.`,
	RunE: runStats,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "serve collections, pages and stats from the local cache only")

	addFilterFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringArrayVar(&facetFlags, "facet", nil, "facet filter as name=value (repeatable)")
		cmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD or RFC 3339)")
		cmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD or RFC 3339)")
	}

	addFilterFlags(browseCmd)
	browseCmd.Flags().IntVar(&page, "page", 1, "page number")
	browseCmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (default PAGE_SIZE)")
	browseCmd.Flags().StringVar(&filterExpr, "filter", "", "expression narrowing the loaded page")
	browseCmd.Flags().StringVar(&sortField, "sort", "", "field to sort the loaded page by")
	browseCmd.Flags().BoolVar(&sortDesc, "desc", false, "sort descending")
	browseCmd.Flags().IntVar(&detailIndex, "detail", -1, "print the JSON of the row at this index")

	addFilterFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format (csv, json, excel)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <collection>.<ext>, - for stdout)")

	statsCmd.Flags().BoolVar(&cachedStats, "cached", false, "sum the stats stored in the local cache")

	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(integrationCmd)
	integrationCmd.AddCommand(integrationStatusCmd)
	integrationCmd.AddCommand(integrationConnectCmd)
	integrationCmd.AddCommand(integrationRemoveCmd)
	rootCmd.AddCommand(orgsCmd)
	rootCmd.AddCommand(reposCmd)
	reposCmd.AddCommand(reposIncludeCmd)
	reposCmd.AddCommand(reposExcludeCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wiring shared by every command
type app struct {
	cfg     *config.Config
	log     logger.Logger
	backend *client.Client
	cache   storage.Storage
	source  *storage.CachingSource
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

// dataSource returns the cache-decorated backend when a cache is configured
func (a *app) dataSource() store.DataSource {
	if a.source != nil {
		return a.source
	}
	return a.backend
}

func (a *app) repositorySource() store.RepositorySource {
	if a.source != nil {
		return a.source
	}
	return a.backend
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	a := &app{
		cfg: cfg,
		log: log,
		backend: client.NewClient(cfg.APIEndpoint,
			client.WithSessionToken(cfg.SessionToken),
			client.WithTimeout(cfg.HTTPTimeout),
			client.WithRateLimiter(client.NewRateLimiter(cfg.RequestInterval)),
			client.WithLogger(log),
		),
	}

	a.cache, err = getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if a.cache == nil && offline {
		return nil, fmt.Errorf("--offline needs a cache (set STORAGE_TYPE to sqlite or postgres)")
	}
	if a.cache != nil {
		a.source = storage.NewCachingSource(a.backend, a.cache, offline, log)
	}
	return a, nil
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case "sqlite":
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	default:
		return nil, nil
	}
}

// newController builds the explorer controller with table grids drawn by
// the caller
func (a *app) newController() (*dashboard.Controller, *render.TableGrid, *render.TableGrid) {
	table, related := render.NewTableGrid(nil), render.NewTableGrid(nil)
	gs := store.NewGridStore(a.dataSource(), a.log, a.cfg.PageSize)
	return dashboard.NewController(gs, table, related, a.cfg.ColumnOptions(), a.cfg.PageSize, a.log), table, related
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate reads a date flag. A bare end date covers that whole day.
func parseDate(value string, end bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid date %q", value))
	}
	if end {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

func parseFacets(values []string) (map[string]string, error) {
	facets := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("facet %q must be name=value", v))
		}
		facets[name] = value
	}
	return facets, nil
}

func selection(collection string) (dashboard.Selection, error) {
	facets, err := parseFacets(facetFlags)
	if err != nil {
		return dashboard.Selection{}, err
	}
	start, err := parseDate(startDate, false)
	if err != nil {
		return dashboard.Selection{}, err
	}
	end, err := parseDate(endDate, true)
	if err != nil {
		return dashboard.Selection{}, err
	}
	return dashboard.Selection{Collection: collection, Facets: facets, Start: start, End: end}, nil
}

func runCollections(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gs := store.NewGridStore(a.dataSource(), a.log, a.cfg.PageSize)
	gs.FetchCollections(cmd.Context())
	snap := gs.Collections().Snapshot()
	if err := snap.Err(); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(snap.Data)
	}
	render.Collections(os.Stdout, snap.Data)
	return nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	controller, table, _ := a.newController()
	defer controller.Close()

	collection := ""
	if len(args) == 1 {
		collection = args[0]
	} else {
		controller.Store().FetchCollections(ctx)
		snap := controller.Store().Collections().Snapshot()
		if err := snap.Err(); err != nil {
			return err
		}
		if len(snap.Data) == 0 {
			return apperrors.NewNotFoundError("collection")
		}
		collection = snap.Data[0].Name
	}

	sel, err := selection(collection)
	if err != nil {
		return err
	}
	sel.Page = page
	sel.PageSize = pageSize
	if err := controller.Browse(ctx, sel); err != nil {
		return err
	}

	binder := controller.Binder()
	if sortField != "" {
		if err := binder.SortBy(sortField, sortDesc); err != nil {
			return err
		}
	}
	if filterExpr != "" {
		if _, err := binder.FilterRows(filterExpr); err != nil {
			return err
		}
	}

	if detailIndex >= 0 {
		detail, err := controller.RowDetail(detailIndex)
		if err != nil {
			return err
		}
		fmt.Println(detail)
		return nil
	}

	view := controller.Snapshot()
	if outputJSON {
		return printJSON(view)
	}

	render.Facets(os.Stdout, view.Facets)
	if err := table.RenderTo(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("%s: page %d of %d (%d records)\n", view.Collection, view.Page, view.TotalPages, view.Total)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	controller, _, _ := a.newController()
	defer controller.Close()

	if err := controller.Search(cmd.Context(), args[0]); err != nil {
		return err
	}
	results := controller.Store().SearchResults().Data()
	if outputJSON {
		return printJSON(results)
	}

	if results.Total() == 0 {
		fmt.Printf("No matches for %q.\n", args[0])
		return nil
	}
	for _, name := range results.Collections() {
		fmt.Printf("\n%s (%d)\n", name, len(results[name]))
		if err := renderRecords(os.Stdout, a, results[name], name); err != nil {
			return err
		}
	}
	return nil
}

// renderRecords draws records of one collection in their own table grid
func renderRecords(w io.Writer, a *app, records []*domain.Record, kind string) error {
	table := render.NewTableGrid(nil)
	binder := grid.NewBinder(table, a.cfg.ColumnOptions(), nil, nil, a.log)
	result := domain.DataGridResult{Records: records, Total: len(records), Page: 1, PageSize: len(records)}
	if err := binder.Load(result, kind); err != nil {
		return err
	}
	return table.RenderTo(w)
}

func runRelated(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	controller, _, related := a.newController()
	defer controller.Close()

	if err := controller.LookupActor(cmd.Context(), args[0]); err != nil {
		return err
	}
	if outputJSON {
		return printJSON(controller.Snapshot().Related)
	}
	return related.RenderTo(os.Stdout)
}

func runIssue(cmd *cobra.Command, args []string) error {
	org, repo, ok := domain.SplitRepoID(args[0])
	if !ok {
		return apperrors.NewBadRequestError(fmt.Sprintf("repository %q must be org/repo", args[0]))
	}
	number, err := strconv.Atoi(args[1])
	if err != nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("issue number %q must be an integer", args[1]))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	controller, _, _ := a.newController()
	defer controller.Close()

	if err := controller.NavigateToIssue(cmd.Context(), domain.IssueRef{Number: number, Org: org, Repo: repo}); err != nil {
		return err
	}
	details := controller.Store().Issue().Data()
	if outputJSON {
		return printJSON(details)
	}
	render.Issue(os.Stdout, details)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := domain.ParseExportFormat(exportFormat)
	if err != nil {
		return apperrors.NewBadRequestError(err.Error())
	}
	sel, err := selection(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	controller, _, _ := a.newController()
	defer controller.Close()

	if err := controller.Browse(ctx, sel); err != nil {
		return err
	}
	data, req, err := controller.Export(ctx, format)
	if err != nil {
		return err
	}

	if exportOut == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	out := exportOut
	if out == "" {
		out = req.CollectionName + format.Extension()
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %s (%d bytes) to %s\n", req.CollectionName, len(data), out)
	return nil
}

func runIntegrationStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	integration := store.NewIntegrationStore(a.backend, a.log)
	integration.FetchStatus(cmd.Context())
	snap := integration.Status().Snapshot()

	if outputJSON {
		return printJSON(snap)
	}
	if err := snap.Err(); err != nil {
		fmt.Println(snap.Error)
		return nil
	}
	if !snap.Data.Connected {
		fmt.Println("No GitHub account connected. Run `github-explorer integration connect`.")
		return nil
	}
	since := ""
	if snap.Data.IntegrationDate != nil {
		since = " since " + snap.Data.IntegrationDate.Format("2006-01-02")
	}
	fmt.Printf("Connected as %s%s\n", snap.Data.Username, since)
	return nil
}

func runIntegrationConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	url := store.NewIntegrationStore(a.backend, a.log).AuthURL()
	if outputJSON {
		return printJSON(map[string]string{"authUrl": url})
	}
	fmt.Printf("Open this URL to connect your GitHub account:\n  %s\n", url)
	return nil
}

func runIntegrationRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	integration := store.NewIntegrationStore(a.backend, a.log)
	integration.Remove(cmd.Context())
	if err := integration.Status().Snapshot().Err(); err != nil {
		return err
	}
	fmt.Println("GitHub integration removed.")
	return nil
}

func runOrgs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	repos := store.NewRepositoryStore(a.repositorySource(), a.log)
	repos.FetchOrganizations(cmd.Context())
	snap := repos.Organizations().Snapshot()
	if err := snap.Err(); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(snap.Data)
	}
	render.Organizations(os.Stdout, snap.Data)
	return nil
}

func runRepos(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	repos, err := loadRepositories(cmd.Context(), store.NewRepositoryStore(a.repositorySource(), a.log))
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(repos)
	}
	render.Repositories(os.Stdout, repos)
	return nil
}

func loadRepositories(ctx context.Context, rs *store.RepositoryStore) ([]domain.Repository, error) {
	rs.FetchPublicRepositories(ctx)
	snap := rs.Repositories().Snapshot()
	return snap.Data, snap.Err()
}

func runSetInclusion(id string, included bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	rs := store.NewRepositoryStore(a.repositorySource(), a.log)
	repos, err := loadRepositories(ctx, rs)
	if err != nil {
		return err
	}

	var target *domain.Repository
	for i := range repos {
		if repos[i].RecordID == id {
			target = &repos[i]
			break
		}
	}
	if target == nil {
		return apperrors.NewNotFoundError("repository " + id)
	}

	if err := rs.SetInclusion(ctx, *target, included); err != nil {
		return err
	}
	verb := "Excluded"
	if included {
		verb = "Included"
	}
	fmt.Printf("%s %s\n", verb, target.GetFullName())

	if included {
		if msg, failed := rs.UserStatsErrors()[target.GetName()]; failed {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
			return nil
		}
		render.UserStats(os.Stdout, aggregator.NewAggregator(nil).AggregateUserStats(rs.UserStats()).Users)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	agg := aggregator.NewAggregator(a.cache)

	var summary *aggregator.Summary
	if cachedStats {
		summary, err = agg.AggregateCached(ctx)
		if err != nil {
			return err
		}
	} else {
		rs := store.NewRepositoryStore(a.repositorySource(), a.log)
		targets, err := statsTargets(ctx, rs, args)
		if err != nil {
			return err
		}
		for _, t := range targets {
			rs.FetchUserStats(ctx, t[0], t[1])
		}
		for repo, msg := range rs.UserStatsErrors() {
			a.log.WithFields(map[string]interface{}{"repo": repo}).Warnf("%s", msg)
		}
		summary = agg.AggregateUserStats(rs.UserStats())
	}

	if outputJSON {
		return printJSON(summary)
	}
	fmt.Printf("\nRepositories: %s\n\n", strings.Join(summary.Repositories, ", "))
	render.UserStats(os.Stdout, append(summary.Users, summary.Totals))
	return nil
}

// statsTargets resolves org/repo pairs from args, or the tracked repositories
func statsTargets(ctx context.Context, rs *store.RepositoryStore, args []string) ([][2]string, error) {
	targets := [][2]string{}
	for _, arg := range args {
		org, repo, ok := domain.SplitRepoID(arg)
		if !ok {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("repository %q must be org/repo", arg))
		}
		targets = append(targets, [2]string{org, repo})
	}
	if len(targets) > 0 {
		return targets, nil
	}

	repos, err := loadRepositories(ctx, rs)
	if err != nil {
		return nil, err
	}
	for _, r := range repos {
		if !r.Included {
			continue
		}
		org := r.OrganizationName
		if org == "" {
			org = r.GetOwner().GetLogin()
		}
		targets = append(targets, [2]string{org, r.GetName()})
	}
	if len(targets) == 0 {
		return nil, apperrors.NewNotFoundError("tracked repository")
	}
	return targets, nil
}
