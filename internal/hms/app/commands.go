package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/slogx"
)

var (
	// ErrUsage is returned for unknown commands and bad flags.
	ErrUsage = errors.New("usage error")

	// ErrNotLoggedIn is returned by commands that need a stored token.
	ErrNotLoggedIn = errors.New("not logged in: run `hms login` first")

	// ErrSessionExpired ends `watch` once the backend rejected the token.
	ErrSessionExpired = errors.New("session expired")
)

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

func (app *Application) commands() map[string]command {
	return map[string]command{
		"login":     {"login -u <username> [-p <password>]", app.login},
		"logout":    {"logout", app.logout},
		"whoami":    {"whoami", app.whoami},
		"session":   {"session", app.showSession},
		"patients":  {"patients [-id <id>] | patients add -first <name> -last <name> -dob <yyyy-mm-dd>", app.patients},
		"invoices":  {"invoices", app.invoices},
		"stock":     {"stock [-low]", app.stock},
		"maternity": {"maternity", app.maternity},
		"hr":        {"hr", app.hrRequests},
		"dashboard": {"dashboard", app.dashboard},
		"diagnose":  {"diagnose", app.diagnose},
		"watch":     {"watch", app.watch},
	}
}

func (app *Application) usage() {
	cmds := app.commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(app.stderr, "Usage: hms <command> [flags]")
	fmt.Fprintln(app.stderr)
	fmt.Fprintln(app.stderr, "Commands:")
	for _, name := range names {
		fmt.Fprintf(app.stderr, "  %s\n", cmds[name].usage)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (app *Application) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return nil
}

func (app *Application) table() *tabwriter.Writer {
	return tabwriter.NewWriter(app.stdout, 0, 0, 2, ' ', 0)
}

// ============================================================================
// Authentication
// ============================================================================

func (app *Application) login(ctx context.Context, args []string) error {
	fs := app.newFlagSet("login")
	username := fs.String("u", os.Getenv("HMS_USERNAME"), "username")
	password := fs.String("p", "", "password (default $HMS_PASSWORD)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *password == "" {
		*password = os.Getenv("HMS_PASSWORD")
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("%w: login needs -u and -p (or HMS_USERNAME and HMS_PASSWORD)", ErrUsage)
	}

	resp, err := app.client.Login(ctx, *username, *password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := app.tokens.SetToken(ctx, resp.Token); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("logged in", "user_id", resp.User.ID)
	fmt.Fprintf(app.stdout, "Logged in as %s (%s)\n", displayName(resp.User), resp.User.Role)
	return nil
}

func (app *Application) logout(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("logout"), args); err != nil {
		return err
	}

	if err := app.session.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, "Logged out")
	return nil
}

func (app *Application) whoami(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("whoami"), args); err != nil {
		return err
	}

	user, err := app.session.Me(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintf(w, "ID:\t%s\n", user.ID)
	fmt.Fprintf(w, "Username:\t%s\n", user.Username)
	fmt.Fprintf(w, "Name:\t%s\n", user.Name)
	fmt.Fprintf(w, "Role:\t%s\n", user.Role)
	return w.Flush()
}

// showSession prints what the stored token says, without calling the backend.
func (app *Application) showSession(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("session"), args); err != nil {
		return err
	}

	s, err := app.tokens.Session(ctx)
	if err != nil {
		return err
	}
	if s.Token == "" {
		return ErrNotLoggedIn
	}

	remaining := app.tokens.TimeUntilExpiration(s.Token)

	w := app.table()
	if s.User != nil {
		fmt.Fprintf(w, "User:\t%s (%s)\n", displayName(*s.User), s.User.Role)
	}
	fmt.Fprintf(w, "Authenticated:\t%t\n", s.IsAuthenticated)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:\t%s\n", s.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Remaining:\t%s\n", remaining)
	fmt.Fprintf(w, "Refresh due:\t%t\n", remaining <= app.cfg.RefreshThreshold)
	return w.Flush()
}

// ============================================================================
// Hospital resources
// ============================================================================

func (app *Application) patients(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "add" {
		return app.addPatient(ctx, args[1:])
	}

	fs := app.newFlagSet("patients")
	id := fs.String("id", "", "show a single patient")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *id != "" {
		p, err := app.session.GetPatient(ctx, *id)
		if err != nil {
			return requireSession(err)
		}
		return app.printPatient(*p)
	}

	list, err := app.session.ListPatients(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintln(w, "ID\tNAME\tBORN\tPHONE")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone)
	}
	return w.Flush()
}

func (app *Application) addPatient(ctx context.Context, args []string) error {
	var in hmssdk.CreatePatientRequest

	fs := app.newFlagSet("patients add")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	fs.StringVar(&in.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	fs.StringVar(&in.Gender, "gender", "", "gender")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	fs.StringVar(&in.Address, "address", "", "address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.FirstName == "" || in.LastName == "" || in.DateOfBirth == "" {
		return fmt.Errorf("%w: patients add needs -first, -last and -dob", ErrUsage)
	}

	p, err := app.session.CreatePatient(ctx, in)
	if err != nil {
		return requireSession(err)
	}
	return app.printPatient(*p)
}

func (app *Application) printPatient(p hmssdk.Patient) error {
	w := app.table()
	fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	fmt.Fprintf(w, "Name:\t%s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(w, "Born:\t%s\n", p.DateOfBirth)
	if p.Gender != "" {
		fmt.Fprintf(w, "Gender:\t%s\n", p.Gender)
	}
	if p.Phone != "" {
		fmt.Fprintf(w, "Phone:\t%s\n", p.Phone)
	}
	if p.Address != "" {
		fmt.Fprintf(w, "Address:\t%s\n", p.Address)
	}
	return w.Flush()
}

func (app *Application) invoices(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("invoices"), args); err != nil {
		return err
	}

	list, err := app.session.ListInvoices(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintln(w, "ID\tPATIENT\tAMOUNT\tSTATUS\tISSUED")
	for _, inv := range list {
		fmt.Fprintf(w, "%s\t%s\t%.2f %s\t%s\t%s\n",
			inv.ID, inv.PatientID, inv.Amount, inv.Currency, inv.Status, inv.IssuedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func (app *Application) stock(ctx context.Context, args []string) error {
	fs := app.newFlagSet("stock")
	lowOnly := fs.Bool("low", false, "only items at or below their reorder level")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	list, err := app.session.ListStock(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tQUANTITY\tREORDER AT\t")
	for _, item := range list {
		low := item.LowStock()
		if *lowOnly && !low {
			continue
		}
		mark := ""
		if low {
			mark = "LOW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d %s\t%d\t%s\n",
			item.ID, item.Name, item.Category, item.Quantity, item.Unit, item.ReorderLevel, mark)
	}
	return w.Flush()
}

func (app *Application) maternity(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("maternity"), args); err != nil {
		return err
	}

	list, err := app.session.ListMaternityRecords(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintln(w, "ID\tPATIENT\tEXPECTED\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.PatientID, r.ExpectedDelivery, r.Status)
	}
	return w.Flush()
}

func (app *Application) hrRequests(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("hr"), args); err != nil {
		return err
	}

	list, err := app.session.ListHRRequests(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintln(w, "ID\tEMPLOYEE\tKIND\tSTATUS\tFROM\tTO")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Employee, r.Kind, r.Status, r.StartDate, r.EndDate)
	}
	return w.Flush()
}

func (app *Application) dashboard(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("dashboard"), args); err != nil {
		return err
	}

	d, err := app.session.Dashboard(ctx)
	if err != nil {
		return requireSession(err)
	}

	w := app.table()
	fmt.Fprintf(w, "Patients:\t%d\n", d.Patients)
	fmt.Fprintf(w, "Open invoices:\t%d\n", d.OpenInvoices)
	fmt.Fprintf(w, "Revenue:\t%.2f\n", d.Revenue)
	fmt.Fprintf(w, "Low stock items:\t%d\n", d.LowStockItems)
	fmt.Fprintf(w, "Pending HR requests:\t%d\n", d.PendingHRRequests)
	fmt.Fprintf(w, "Active pregnancies:\t%d\n", d.ActivePregnancies)
	return w.Flush()
}

// ============================================================================
// Operations
// ============================================================================

func (app *Application) diagnose(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("diagnose"), args); err != nil {
		return err
	}

	d := app.client.Diagnose(ctx)
	if problem := d.Problem(); problem != "" {
		fmt.Fprintln(app.stdout, problem)
		return fmt.Errorf("backend check failed: %w", d.Err)
	}

	fmt.Fprintf(app.stdout, "%s is healthy (version %s, %s)\n", d.BaseURL, d.Version, d.Latency.Round(time.Millisecond))
	return nil
}

// watch keeps the session alive with the background monitor until the
// process is interrupted or the backend rejects the token.
func (app *Application) watch(ctx context.Context, args []string) error {
	if err := parseFlags(app.newFlagSet("watch"), args); err != nil {
		return err
	}

	token, err := app.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNotLoggedIn
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := hmssdk.NewMonitor(app.tokens, slogx.FromContext(ctx), app.cfg.MonitorInterval)
	monitor.Start()
	fmt.Fprintf(app.stdout, "Watching session, checking every %s. Press Ctrl+C to stop.\n", monitor.Interval)

	var result error
	select {
	case <-ctx.Done():
	case <-app.expired:
		result = ErrSessionExpired
	}

	app.stopMonitor(monitor)
	return result
}

func (app *Application) stopMonitor(m *hmssdk.Monitor) {
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(app.cfg.ShutdownGracePeriod):
		app.logger.Warn("monitor did not stop within grace period")
	}
}

func displayName(u hmssdk.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
