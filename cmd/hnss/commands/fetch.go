package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"hnsaved/internal/archive"
	"hnsaved/internal/components/telemetry"
	"hnsaved/internal/scrapers/hackernews"
	"hnsaved/internal/store"
	"hnsaved/lib/restyutil"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
)

const dataFileName = "hnss/data.json"

var fetchFlags struct {
	username   string
	password   string
	authFile   string
	file       string
	maxPages   int
	stop       string
	pageDelay  time.Duration
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	rate       float64
	baseUrl    string
	dumpDir    string
}

func init() {
	defaults := hackernews.DefaultSessionOptions()

	flags := fetchCmd.Flags()
	flags.StringVarP(&fetchFlags.username, "username", "u", "", "HackerNews username")
	flags.StringVarP(&fetchFlags.password, "password", "p", "", "HackerNews password")
	flags.StringVarP(&fetchFlags.authFile, "auth-file", "a", "", "Auth file (JSON5 format). (default: $XDG_CONFIG_HOME/"+authFileName+")")
	flags.StringVarP(&fetchFlags.file, "file", "f", "", "File to download to. '-' redirects output to stdout, .db/.sqlite files and libsql:// urls are databases. (default: $XDG_DATA_HOME/"+dataFileName+")")
	flags.IntVarP(&fetchFlags.maxPages, "max-pages", "m", 1, "The maximum number of pages to go into the past, 0 goes back all the way to the beginning of time.")
	flags.StringVar(&fetchFlags.stop, "stop", string(archive.STOP_KNOWN), "When to consider the archive caught up: 'known' (any archived story) or 'newest' (the newest archived story).")
	flags.DurationVar(&fetchFlags.pageDelay, "page-delay", hackernews.DefaultCrawlOptions().PageDelay, "Pause between pages.")
	flags.IntVar(&fetchFlags.retries, "retries", defaults.MaxRetries, "Retries of a failing request.")
	flags.DurationVar(&fetchFlags.retryDelay, "retry-delay", defaults.RetryDelay, "Pause between retries.")
	flags.DurationVar(&fetchFlags.timeout, "timeout", defaults.Timeout, "Timeout of a single request.")
	flags.Float64Var(&fetchFlags.rate, "rate", defaults.RequestsPerSecond, "Maximum requests per second, 0 disables the limit.")
	flags.StringVar(&fetchFlags.baseUrl, "base-url", defaults.BaseUrl, "Hacker News base url.")
	flags.StringVar(&fetchFlags.dumpDir, "dump-dir", "", "Where pages that fail are written, in debug mode every HTTP exchange too. (default: $XDG_CACHE_HOME/hnss/dumps)")

	rootCmd.AddCommand(fetchCmd)
}

func dataFile(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return xdg.DataFile(dataFileName)
}

func dumpDir() string {
	if fetchFlags.dumpDir != "" {
		return fetchFlags.dumpDir
	}
	return filepath.Join(xdg.CacheHome, "hnss", "dumps")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Downloads the newest saved stories into the archive.",
	Long: `Downloads saved stories from Hacker News and merges them into the archive.
Subsequent runs using a previous archive only scrape the newest saved stories.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tel := telemetry.NewSlogAPI(nil)
		telemetry.InstrumentPerfStats(ctx, tel, 15*time.Second)

		creds, err := resolveCredentials(
			Credentials{Username: fetchFlags.username, Password: fetchFlags.password},
			fetchFlags.authFile,
			defaultAuthFile(),
		)
		if err != nil {
			return err
		}
		strategy, err := archive.ParseStrategy(fetchFlags.stop)
		if err != nil {
			return err
		}
		path, err := dataFile(fetchFlags.file)
		if err != nil {
			return fmt.Errorf("resolve data file: %w", err)
		}

		st, err := store.Open(ctx, path, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer st.Close()

		opts := hackernews.DefaultSessionOptions()
		opts.BaseUrl = fetchFlags.baseUrl
		opts.MaxRetries = fetchFlags.retries
		opts.RetryDelay = fetchFlags.retryDelay
		opts.Timeout = fetchFlags.timeout
		opts.RequestsPerSecond = fetchFlags.rate
		if rootFlags.debug {
			out, err := restyutil.NewFilesystemOutput(dumpDir())
			if err != nil {
				return err
			}
			opts.Dump = out
		}

		session, err := hackernews.NewSession(opts, tel)
		if err != nil {
			return err
		}

		result, err := archive.New(st, session, tel, nil).Run(ctx, archive.Options{
			Username:  creds.Username,
			Password:  creds.Password,
			MaxPages:  fetchFlags.maxPages,
			PageDelay: fetchFlags.pageDelay,
			Strategy:  strategy,
		})
		if err != nil {
			var pageErr *hackernews.PageError
			if errors.As(err, &pageErr) && ctx.Err() == nil {
				dumpPage(pageErr)
			}
			return err
		}

		slog.Info(
			"archive updated",
			"run", result.Run.Id,
			"fetched", result.Run.Fetched,
			"added", len(result.Added),
			"total", result.Total,
			"path", path,
		)
		return nil
	},
}

func dumpPage(pageErr *hackernews.PageError) {
	if len(pageErr.Body) == 0 {
		return
	}
	out, err := restyutil.NewFilesystemOutput(dumpDir())
	if err != nil {
		slog.Error("failed to create dump directory", "err", err)
		return
	}
	id := fmt.Sprintf("page-%d.html", pageErr.Page)
	out.Write(id, string(pageErr.Body))
	slog.Error("page that failed was dumped", "page", pageErr.Page, "url", pageErr.Url, "path", out.Path(id))
}
