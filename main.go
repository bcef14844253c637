// rcs is a from-scratch reimplementation of the GNU RCS suite's core
// single-file operations: ci (deposit), co (retrieve), rcs (admin), rlog
// (history report), rcsdiff, rcsmerge, and rcsclean, plus a batch mode that
// walks a directory pairing working files with their ",v" archives.
//
// Design:
// Each subcommand opens (or creates) an archive via the rcs orchestration
// package, applies its operation, and — for anything that mutates the
// archive — writes it back through a lockfile and a rename-swapped temp
// file. A single cleanup.Registry is armed for the whole invocation so a
// fatal signal mid-operation still removes the lockfile and any temp
// files instead of leaving the archive wedged.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof" // profiling only
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alitto/pond"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/perforce/p4prometheus/version"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/gnu-mirror-unofficial/rcs-go/archive"
	"github.com/gnu-mirror-unofficial/rcs-go/cleanup"
	"github.com/gnu-mirror-unofficial/rcs-go/config"
	"github.com/gnu-mirror-unofficial/rcs-go/delta"
	"github.com/gnu-mirror-unofficial/rcs-go/diffdriver"
	"github.com/gnu-mirror-unofficial/rcs-go/keyword"
	"github.com/gnu-mirror-unofficial/rcs-go/node"
	"github.com/gnu-mirror-unofficial/rcs-go/rcs"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
	"github.com/gnu-mirror-unofficial/rcs-go/rlog"
)

// batchMetrics exposes Prometheus counters for the batch sub-command (rlog
// run across many archives at once) when --metrics-addr is given.
type batchMetrics struct {
	archivesProcessed prometheus.Counter
	locksBusy         prometheus.Counter
	parseErrors       prometheus.Counter
}

func newBatchMetrics() *batchMetrics {
	return &batchMetrics{
		archivesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rcs_archives_processed_total",
			Help: "Archives successfully processed by this batch invocation.",
		}),
		locksBusy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rcs_locks_busy_total",
			Help: "Archives skipped because another rcs process held the lockfile.",
		}),
		parseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rcs_parse_errors_total",
			Help: "Archives that failed to parse.",
		}),
	}
}

func serveMetrics(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("metrics server: %v", err)
		}
	}()
}

func fatal(logger *logrus.Logger, format string, args ...interface{}) {
	logger.Errorf(format, args...)
	os.Exit(1)
}

// checkinFatal reports a rcs.Checkin failure, coloring a PolicyError (a
// lock held by someone else) distinctly from a structural failure so it
// stands out in a terminal.
func checkinFatal(logger *logrus.Logger, useColor bool, errColor *color.Color, prefix string, err error) {
	var polErr *rcs.PolicyError
	if errors.As(err, &polErr) {
		logger.Error(colorize(useColor, errColor, prefix+": "+polErr.Error()))
		os.Exit(1)
	}
	fatal(logger, "%s: %v", prefix, err)
}

func colorize(useColor bool, c *color.Color, s string) string {
	if !useColor {
		return s
	}
	return c.Sprint(s)
}

func zoneOrFatal(logger *logrus.Logger, s string) rcsdate.Zone {
	z, err := rcsdate.ParseZone(s)
	if err != nil {
		fatal(logger, "%v", err)
	}
	return z
}

// readWorkingFile reads path, or stdin if path is "" or "-".
func readWorkingFile(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func runCheckin(logger *logrus.Logger, cfg *config.Config, reg *cleanup.Registry, archivePath, workingPath string, opts rcs.CheckinOptions, zone string, useColor bool, errColor *color.Color) {
	opts.Zone = zoneOrFatal(logger, zone)
	text, err := readWorkingFile(workingPath)
	if err != nil {
		fatal(logger, "ci: reading working file: %v", err)
	}
	opts.WorkingText = text

	var o *rcs.Opened
	if _, statErr := os.Stat(archivePath); statErr == nil {
		o, err = rcs.Open(archivePath, cfg)
		if err != nil {
			fatal(logger, "ci: %v", err)
		}
	} else {
		o = &rcs.Opened{Repo: archive.NewRepository(), Path: archivePath}
	}
	defer o.Close()

	rev, err := rcs.Checkin(o, opts)
	if err != nil {
		checkinFatal(logger, useColor, errColor, "ci", err)
	}
	if err := rcs.Save(reg, o); err != nil {
		fatal(logger, "ci: %v", err)
	}
	logger.Infof("%s  <--  %s", archivePath, workingPath)
	logger.Infof("new revision: %s", rev)
}

func runCheckout(logger *logrus.Logger, cfg *config.Config, archivePath string, opts rcs.CheckoutOptions, out io.Writer) {
	o, err := rcs.Open(archivePath, cfg)
	if err != nil {
		fatal(logger, "co: %v", err)
	}
	defer o.Close()

	text, resolved, err := rcs.Checkout(o, opts)
	if err != nil {
		fatal(logger, "co: %v", err)
	}
	logger.Infof("revision %s", resolved)
	fmt.Fprint(out, text)
}

func runRlog(logger *logrus.Logger, cfg *config.Config, archivePath string, filter rlog.Filter, out io.Writer) {
	o, err := rcs.Open(archivePath, cfg)
	if err != nil {
		fatal(logger, "rlog: %v", err)
	}
	defer o.Close()

	rp := rlog.New(out)
	if err := rp.WriteHeader(o.Repo, filepath.Base(archivePath), strings.TrimSuffix(filepath.Base(archivePath), ",v")); err != nil {
		fatal(logger, "rlog: %v", err)
	}
	getLog := func(d *archive.Delta) (string, error) {
		if d.PendingLog != nil {
			return *d.PendingLog, nil
		}
		if o.Fro == nil {
			return "", nil
		}
		var b strings.Builder
		for _, sp := range d.Log {
			if err := o.Fro.SpewRange(&b, sp.Begin, sp.End); err != nil {
				return "", err
			}
		}
		return b.String(), nil
	}
	if err := rp.WriteEntries(o.Repo, filter, getLog); err != nil {
		fatal(logger, "rlog: %v", err)
	}
}

func runDiff(logger *logrus.Logger, cfg *config.Config, archivePath, fromRev, toRev string) {
	o, err := rcs.Open(archivePath, cfg)
	if err != nil {
		fatal(logger, "rcsdiff: %v", err)
	}
	defer o.Close()
	text, err := rcs.Diff(o, cfg, fromRev, toRev)
	if err != nil {
		fatal(logger, "rcsdiff: %v", err)
	}
	fmt.Print(text)
}

func runMerge(logger *logrus.Logger, cfg *config.Config, archivePath, minePath, ancestorRev, theirsRev string) {
	o, err := rcs.Open(archivePath, cfg)
	if err != nil {
		fatal(logger, "rcsmerge: %v", err)
	}
	defer o.Close()

	ancestorText, err := delta.Reconstruct(o.Repo, o.Fro, revnum.Normalize(ancestorRev))
	if err != nil {
		fatal(logger, "rcsmerge: %v", err)
	}
	theirsText, err := delta.Reconstruct(o.Repo, o.Fro, revnum.Normalize(theirsRev))
	if err != nil {
		fatal(logger, "rcsmerge: %v", err)
	}
	mineText, err := readWorkingFile(minePath)
	if err != nil {
		fatal(logger, "rcsmerge: reading working file: %v", err)
	}

	tmpDir := cfg.TmpDir
	mineTmp := cleanup.NewTempName(tmpDir, "rcsmerge-mine")
	ancestorTmp := cleanup.NewTempName(tmpDir, "rcsmerge-anc")
	theirsTmp := cleanup.NewTempName(tmpDir, "rcsmerge-theirs")
	for path, text := range map[string]string{mineTmp: mineText, ancestorTmp: ancestorText, theirsTmp: theirsText} {
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			fatal(logger, "rcsmerge: %v", err)
		}
		defer os.Remove(path)
	}

	driverCfg := diffdriver.Config{DiffCmd: cfg.DiffCmd, Diff3Cmd: cfg.Diff3Cmd}
	merged, clean, err := diffdriver.Merge3(driverCfg, mineTmp, ancestorTmp, theirsTmp)
	if err != nil {
		fatal(logger, "rcsmerge: %v", err)
	}
	fmt.Print(merged)
	if !clean {
		logger.Warnf("conflicts during merge")
		os.Exit(1)
	}
}

func runClean(logger *logrus.Logger, cfg *config.Config, archivePath, workingPath, rev string) {
	o, err := rcs.Open(archivePath, cfg)
	if err != nil {
		fatal(logger, "rcsclean: %v", err)
	}
	defer o.Close()

	identical, err := rcs.Clean(o, workingPath, rev)
	if err != nil {
		fatal(logger, "rcsclean: %v", err)
	}
	if identical {
		logger.Infof("removing %s (unchanged)", workingPath)
		if err := os.Remove(workingPath); err != nil {
			fatal(logger, "rcsclean: %v", err)
		}
	}
}

func runIdent(workingPath string) {
	text, err := readWorkingFile(workingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ident: %v\n", err)
		os.Exit(1)
	}
	for _, m := range keyword.ScanMarkers(text) {
		fmt.Printf("     $%s: %s $\n", m.Keyword, m.OldValue)
	}
}

// runBatch walks dir pairing working files with their ",v" archives and
// runs rlog over each one, using a bounded worker pool so many archives
// are processed concurrently without ever touching the same archive twice
// at once — concurrent writers to *one* archive still serialize through
// its lockfile; this pool only parallelizes across many archives.
func runBatch(logger *logrus.Logger, cfg *config.Config, dir string, filter rlog.Filter, metrics *batchMetrics, showProgress bool) {
	pairs, err := node.ScanDirectory(dir)
	if err != nil {
		fatal(logger, "batch: %v", err)
	}
	pool := pond.New(runtime.NumCPU(), 0, pond.MinWorkers(4))
	defer pool.StopAndWait()

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(pairs)))
	}
	for _, pair := range pairs {
		pair := pair
		pool.Submit(func() {
			if bar != nil {
				defer bar.Add(1)
			}
			archivePath := filepath.Join(dir, pair.ArchiveFile)
			o, err := rcs.Open(archivePath, cfg)
			if err != nil {
				logger.Errorf("batch: %s: %v", archivePath, err)
				if metrics != nil {
					metrics.parseErrors.Inc()
				}
				return
			}
			defer o.Close()
			rp := rlog.New(os.Stdout)
			rp.WriteHeader(o.Repo, filepath.Base(archivePath), pair.WorkingFile)
			getLog := func(d *archive.Delta) (string, error) {
				if d.PendingLog != nil {
					return *d.PendingLog, nil
				}
				var b strings.Builder
				for _, sp := range d.Log {
					if err := o.Fro.SpewRange(&b, sp.Begin, sp.End); err != nil {
						return "", err
					}
				}
				return b.String(), nil
			}
			rp.WriteEntries(o.Repo, filter, getLog)
			if metrics != nil {
				metrics.archivesProcessed.Inc()
			}
		})
	}
}

func main() {
	var (
		app = kingpin.New("rcs", "A from-scratch implementation of RCS's single-file revision control operations.")

		configFile = app.Flag("config", "YAML config file.").Short('c').String()
		envFile    = app.Flag("env-file", "Optional .env file overlaying the environment contract.").String()
		zone       = app.Flag("zone", "Display timezone: local, UTC, or +HH:MM/-HH:MM.").Default("local").String()
		debug      = app.Flag("debug", "Enable debug-level logging.").Bool()
		cpuProfile = app.Flag("cpuprofile", "Write a CPU profile for the whole invocation.").Bool()
		memProfile = app.Flag("memprofile", "Write a memory profile for the whole invocation.").Bool()
		noColor    = app.Flag("no-color", "Disable colored status output even on a terminal.").Bool()

		ci          = app.Command("ci", "Deposit a working file as a new revision.")
		ciArchive   = ci.Arg("archive", "Archive (,v) file.").Required().String()
		ciWorking   = ci.Flag("working", "Working file to read (default stdin).").Short('w').String()
		ciRevision  = ci.Flag("revision", "Target revision number or branch.").Short('r').String()
		ciAuthor    = ci.Flag("author", "Author of record.").Short('a').String()
		ciMessage   = ci.Flag("message", "Log message.").Short('m').String()
		ciState     = ci.Flag("state", "Initial state (default Exp).").Short('s').String()
		ciLock      = ci.Flag("lock", "Lock the new revision for this identifier.").Short('l').String()
		ciLeader    = ci.Flag("comment-leader", "Comment leader for $Log$ insertion, e.g. \"// \".").String()

		co         = app.Command("co", "Retrieve a revision's text.")
		coArchive  = co.Arg("archive", "Archive (,v) file.").Required().String()
		coRevision = co.Flag("revision", "Revision, branch, or symbolic name to retrieve.").Short('r').String()
		coAuthor   = co.Flag("author", "Select latest matching this author.").String()
		coDate     = co.Flag("date", "Select as of this date.").String()
		coState    = co.Flag("state", "Select latest matching this state.").String()
		coMode     = co.Flag("expand", "Override keyword substitution mode (kv/kvl/k/v/o/b).").String()
		coLock     = co.Flag("lock", "Also lock the checked-out revision for this identifier.").Short('l').String()

		admin        = app.Command("admin", "Edit archive administrative metadata.")
		adminArchive = admin.Arg("archive", "Archive (,v) file.").Required().String()
		adminComment = admin.Flag("comment", "Set the comment leader.").String()
		adminDesc    = admin.Flag("desc-file", "Replace the description from this file.").String()
		adminExpand  = admin.Flag("expand", "Set the default keyword substitution mode.").String()
		adminStrict  = admin.Flag("strict", "Set strict locking on.").Bool()
		adminUnlock  = admin.Flag("relax", "Set strict locking off.").Bool()
		adminState   = admin.Flag("state", "revision:state pairs, may repeat.").Strings()
		adminSymbol  = admin.Flag("symbol", "name:revision pairs, may repeat.").Strings()
		adminOutdate = admin.Flag("outdate", "Revisions to delete outright, may repeat.").Strings()

		logCmd      = app.Command("rlog", "Print per-revision history.")
		logArchive  = logCmd.Arg("archive", "Archive (,v) file.").Required().String()
		logRevs     = logCmd.Flag("revision", "Revision or branch to include, may repeat.").Strings()
		logAuthor   = logCmd.Flag("author", "Only entries by this author.").String()
		logState    = logCmd.Flag("state", "Only entries in this state.").String()
		logLockOnly = logCmd.Flag("locked-only", "Only locked revisions.").Bool()

		diffCmd   = app.Command("rcsdiff", "Diff two revisions.")
		diffArchive = diffCmd.Arg("archive", "Archive (,v) file.").Required().String()
		diffFrom  = diffCmd.Flag("from", "From revision.").Required().String()
		diffTo    = diffCmd.Flag("to", "To revision.").Required().String()

		mergeCmd     = app.Command("rcsmerge", "Three-way merge a working file against two revisions.")
		mergeArchive = mergeCmd.Arg("archive", "Archive (,v) file.").Required().String()
		mergeWorking = mergeCmd.Flag("working", "Working file (\"mine\").").Short('w').Required().String()
		mergeBase    = mergeCmd.Flag("ancestor", "Common-ancestor revision.").Required().String()
		mergeOther   = mergeCmd.Flag("theirs", "Revision to merge in.").Required().String()

		cleanCmd     = app.Command("rcsclean", "Remove a working file identical to its checked-out revision.")
		cleanArchive = cleanCmd.Arg("archive", "Archive (,v) file.").Required().String()
		cleanWorking = cleanCmd.Flag("working", "Working file.").Short('w').Required().String()
		cleanRev     = cleanCmd.Flag("revision", "Revision to compare against (default: head).").String()

		identCmd     = app.Command("ident", "Scan a file for $Keyword: value $ markers without an archive.")
		identWorking = identCmd.Arg("file", "File to scan.").Required().String()

		batchCmd      = app.Command("batch", "Run rlog over every archive under a directory.")
		batchDir      = batchCmd.Arg("dir", "Directory to scan.").Required().String()
		batchProgress = batchCmd.Flag("progress", "Show a progress bar.").Bool()
		batchMetricsAddr = batchCmd.Flag("metrics-addr", "Serve Prometheus metrics on this address while running (e.g. :9101).").String()
	)

	app.UsageTemplate(kingpin.CompactUsageTemplate).Version(version.Print("rcs-go")).Author("GNU RCS (Go rewrite)")
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile).Stop()
	} else if *memProfile {
		defer profile.Start(profile.MemProfile).Stop()
	}

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}

	useColor := !*noColor && isatty.IsTerminal(os.Stdout.Fd())
	warnColor := color.New(color.FgYellow)
	errColor := color.New(color.FgRed)

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fatal(logger, "loading config: %v", err)
	}
	if *zone != "" && *zone != "local" {
		cfg.Zone = *zone
	}

	reg := cleanup.NewRegistry()
	defer reg.Stop()
	defer reg.ReleaseAll()

	switch cmd {
	case ci.FullCommand():
		zn := zoneOrFatal(logger, cfg.Zone)
		opts := rcs.CheckinOptions{
			Revision: *ciRevision,
			Author:   *ciAuthor,
			Message:  *ciMessage,
			State:    *ciState,
			Lock:     *ciLock,
			Zone:     zn,
			Leader:   *ciLeader,
		}
		runCheckin(logger, cfg, reg, *ciArchive, *ciWorking, opts, cfg.Zone, useColor, errColor)

	case co.FullCommand():
		mode, err := keyword.ParseMode(*coMode)
		if err != nil {
			fatal(logger, "co: %v", err)
		}
		opts := rcs.CheckoutOptions{
			Revision: *coRevision,
			Author:   *coAuthor,
			Date:     *coDate,
			State:    *coState,
			Mode:     mode,
			Lock:     *coLock,
			Zone:     zoneOrFatal(logger, cfg.Zone),
		}
		runCheckout(logger, cfg, *coArchive, opts, os.Stdout)

	case admin.FullCommand():
		opts := rcs.AdminOptions{
			SetState:     map[string]string{},
			AddSymbol:    map[string]string{},
			LockRevision: map[string]string{},
			Outdate:      *adminOutdate,
		}
		for _, pair := range *adminState {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				fatal(logger, "admin: --state expects revision:state, got %q", pair)
			}
			opts.SetState[k] = v
		}
		for _, pair := range *adminSymbol {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				fatal(logger, "admin: --symbol expects name:revision, got %q", pair)
			}
			opts.AddSymbol[k] = v
		}
		if *adminComment != "" {
			opts.SetComment = adminComment
		}
		if *adminExpand != "" {
			opts.SetExpand = adminExpand
		}
		if *adminDesc != "" {
			data, err := os.ReadFile(*adminDesc)
			if err != nil {
				fatal(logger, "admin: %v", err)
			}
			desc := string(data)
			opts.SetDesc = &desc
		}
		if *adminStrict {
			t := true
			opts.SetStrict = &t
		}
		if *adminUnlock {
			f := false
			opts.SetStrict = &f
		}

		o, err := rcs.Open(*adminArchive, cfg)
		if err != nil {
			fatal(logger, "admin: %v", err)
		}
		defer o.Close()
		if err := rcs.Admin(o, opts); err != nil {
			fatal(logger, "admin: %v", err)
		}
		if err := rcs.Save(reg, o); err != nil {
			fatal(logger, "admin: %v", err)
		}

	case logCmd.FullCommand():
		filter := rlog.Filter{
			Revisions:  *logRevs,
			Author:     *logAuthor,
			State:      *logState,
			LockedOnly: *logLockOnly,
		}
		runRlog(logger, cfg, *logArchive, filter, os.Stdout)

	case diffCmd.FullCommand():
		runDiff(logger, cfg, *diffArchive, *diffFrom, *diffTo)

	case mergeCmd.FullCommand():
		runMerge(logger, cfg, *mergeArchive, *mergeWorking, *mergeBase, *mergeOther)

	case cleanCmd.FullCommand():
		runClean(logger, cfg, *cleanArchive, *cleanWorking, *cleanRev)

	case identCmd.FullCommand():
		runIdent(*identWorking)

	case batchCmd.FullCommand():
		var metrics *batchMetrics
		if *batchMetricsAddr != "" {
			metrics = newBatchMetrics()
			serveMetrics(*batchMetricsAddr, logger)
		}
		runBatch(logger, cfg, *batchDir, rlog.Filter{}, metrics, *batchProgress)
		if useColor {
			fmt.Fprintln(os.Stderr, colorize(useColor, warnColor, "batch complete"))
		}
	}
}
