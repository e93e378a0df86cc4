package cli

import (
	"context"
	"flag"
	"os"
	"time"

	"ledgersync-backend/internal/application/activity"
	"ledgersync-backend/internal/application/providers"
	"ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/infrastructure/database"
	"ledgersync-backend/internal/interfaces/router"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type migrateCmd struct{ env *Env }

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the ledger tables" }
func (*migrateCmd) Usage() string {
	return `migrate

  Runs AutoMigrate for every ledger table against DATABASE_URL.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, err := c.env.Open()
	if err != nil {
		return c.env.fail("open: %v", err)
	}
	defer deps.Close()
	if err := database.AutoMigrate(deps.DB); err != nil {
		return c.env.fail("migrate: %v", err)
	}
	return c.env.printJSON(map[string]any{"migrated": len(database.Models)})
}

type excludeStaleCmd struct {
	env     *Env
	account string
	days    int
}

func (*excludeStaleCmd) Name() string     { return "exclude-stale" }
func (*excludeStaleCmd) Synopsis() string { return "exclude pending entries that never posted" }
func (*excludeStaleCmd) Usage() string {
	return `exclude-stale [-account <uuid>] [-days <n>]

  Excludes pending transaction entries dated more than -days before today.
  Without -account every account is covered.
`
}
func (c *excludeStaleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account id; empty covers every account")
	f.IntVar(&c.days, "days", 0, "Age in days; 0 uses STALE_PENDING_DAYS")
}

func (c *excludeStaleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	accountID, err := optionalAccount(c.account)
	if err != nil {
		return c.env.usage("%v", err)
	}
	deps, err := c.env.Open()
	if err != nil {
		return c.env.fail("open: %v", err)
	}
	defer deps.Close()

	days := c.days
	if days <= 0 && deps.Config != nil {
		days = deps.Config.StalePendingDays
	}
	svc := &reconciliation.Service{DB: deps.DB}
	n, err := svc.AutoExcludeStalePending(ctx, accountID, days)
	if err != nil {
		return c.env.fail("exclude-stale: %v", err)
	}
	return c.env.printJSON(map[string]any{"excluded": n})
}

type reconcileCmd struct {
	env       *Env
	account   string
	dryRun    bool
	window    int
	tolerance string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "pair pending entries with their posted versions" }
func (*reconcileCmd) Usage() string {
	return `reconcile [-account <uuid>] [-dry-run] [-window <days>] [-tolerance <fraction>]

  Excludes pending entries with exactly one posted twin and records fuzzy
  suggestions for the rest. Prints the report as JSON.
`
}
func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account id; empty covers every account")
	f.BoolVar(&c.dryRun, "dry-run", false, "Report matches without writing")
	f.IntVar(&c.window, "window", 0, "Exact-match date window in days; 0 uses RECONCILE_DATE_WINDOW_DAYS")
	f.StringVar(&c.tolerance, "tolerance", "", "Fuzzy amount tolerance, e.g. 0.25; empty uses RECONCILE_AMOUNT_TOLERANCE")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	accountID, err := optionalAccount(c.account)
	if err != nil {
		return c.env.usage("%v", err)
	}
	opts := reconciliation.Options{AccountID: accountID, DryRun: c.dryRun, DateWindowDays: c.window}
	if c.tolerance != "" {
		tol, err := decimal.NewFromString(c.tolerance)
		if err != nil || tol.IsNegative() {
			return c.env.usage("invalid -tolerance %q", c.tolerance)
		}
		opts.AmountTolerance = tol
	}

	deps, err := c.env.Open()
	if err != nil {
		return c.env.fail("open: %v", err)
	}
	defer deps.Close()
	if cfg := deps.Config; cfg != nil {
		if opts.DateWindowDays == 0 {
			opts.DateWindowDays = cfg.ReconcileDateWindowDays
		}
		if opts.AmountTolerance.IsZero() {
			opts.AmountTolerance = cfg.ReconcileAmountTolerance
		}
	}

	report, err := (&reconciliation.Service{DB: deps.DB}).ReconcilePendingDuplicates(ctx, opts)
	if err != nil {
		return c.env.fail("reconcile: %v", err)
	}
	return c.env.printJSON(report)
}

type suggestionCmd struct {
	env    *Env
	action string
	entry  string
}

func (*suggestionCmd) Name() string     { return "suggestion" }
func (*suggestionCmd) Synopsis() string { return "merge, dismiss or clear a duplicate suggestion" }
func (*suggestionCmd) Usage() string {
	return `suggestion -entry <pending entry uuid> -action merge|dismiss|clear

  merge   deletes the pending entry and keeps the suggested posted entry
  dismiss keeps the suggestion but hides it
  clear   removes the suggestion
`
}
func (c *suggestionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.entry, "entry", "", "Pending entry id (required)")
	f.StringVar(&c.action, "action", "", "merge, dismiss or clear (required)")
}

func (c *suggestionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	entryID, err := uuid.Parse(c.entry)
	if err != nil {
		return c.env.usage("invalid -entry %q", c.entry)
	}
	if c.action != "merge" && c.action != "dismiss" && c.action != "clear" {
		return c.env.usage("-action must be merge, dismiss or clear")
	}
	deps, err := c.env.Open()
	if err != nil {
		return c.env.fail("open: %v", err)
	}
	defer deps.Close()

	svc := &reconciliation.Service{DB: deps.DB}
	out := map[string]any{"entry_id": entryID, "action": c.action}
	switch c.action {
	case "merge":
		var postedID uuid.UUID
		postedID, err = svc.MergeWithDuplicate(ctx, entryID)
		out["posted_entry_id"] = postedID
	case "dismiss":
		err = svc.DismissDuplicateSuggestion(ctx, entryID)
	case "clear":
		err = svc.ClearDuplicateSuggestion(ctx, entryID)
	}
	if err != nil {
		return c.env.fail("%s: %v", c.action, err)
	}
	return c.env.printJSON(out)
}

type inferLabelCmd struct {
	env    *Env
	name   string
	amount string
}

func (*inferLabelCmd) Name() string     { return "infer-label" }
func (*inferLabelCmd) Synopsis() string { return "show the activity label inferred from a description" }
func (*inferLabelCmd) Usage() string {
	return `infer-label -name <description> -amount <signed amount>

  Prints the investment activity label for a transaction description, or null.
`
}
func (c *inferLabelCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Transaction description (required)")
	f.StringVar(&c.amount, "amount", "", "Signed amount; positive is an outflow (required)")
}

func (c *inferLabelCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" {
		return c.env.usage("-name is required")
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		return c.env.usage("invalid -amount %q", c.amount)
	}
	return c.env.printJSON(map[string]any{"label": activity.InferFromDescription(c.name, amount, nil)})
}

type syncCmd struct {
	env        *Env
	account    string
	provider   string
	providerID string
	file       string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "import a provider payload file into an account" }
func (*syncCmd) Usage() string {
	return `sync -account <uuid> -provider plaid|simplefin|coinbase -file <payload.json> [-provider-id <uuid>]

  Runs one sync: import, stale cleanup, reconciliation and activity detection.
`
}
func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account id (required)")
	f.StringVar(&c.provider, "provider", "", "Provider payload format (required)")
	f.StringVar(&c.providerID, "provider-id", "", "Account provider id attributing imported holdings")
	f.StringVar(&c.file, "file", "", "Path to the raw provider payload (required)")
}

func (c *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	accountID, err := uuid.Parse(c.account)
	if err != nil {
		return c.env.usage("invalid -account %q", c.account)
	}
	var providerID *uuid.UUID
	if c.providerID != "" {
		id, err := uuid.Parse(c.providerID)
		if err != nil {
			return c.env.usage("invalid -provider-id %q", c.providerID)
		}
		providerID = &id
	}
	raw, err := os.ReadFile(c.file)
	if err != nil {
		return c.env.usage("read -file: %v", err)
	}
	batch, err := providers.Decode(c.provider, raw, time.Now())
	if err != nil {
		return c.env.usage("%v", err)
	}

	deps, err := c.env.Open()
	if err != nil {
		return c.env.fail("open: %v", err)
	}
	defer deps.Close()
	if deps.Config == nil {
		return c.env.fail("sync needs configuration")
	}
	runner, err := router.Services(deps.Config, deps.DB, deps.Rdb)
	if err != nil {
		return c.env.fail("%v", err)
	}
	summary, err := runner.Run(ctx, accountID, providerID, batch)
	if err != nil {
		return c.env.fail("sync: %v", err)
	}
	return c.env.printJSON(summary)
}
