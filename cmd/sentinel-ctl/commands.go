package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"sentinel-guard/internal/client"
	"sentinel-guard/internal/export"
	"sentinel-guard/internal/model"
)

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":     {"-u user -p password: log in and save the session", runLogin},
		"logout":    {"clear the saved session", runLogout},
		"whoami":    {"show the logged in user", runWhoami},
		"orgs":      {"list | create | update <id> | delete <id>: organizations", runOrgs},
		"threats":   {"[-page n -size n] [-export file.csv]: threat history", runThreats},
		"block":     {"<threatId>: block the threat's source IP on its target host", runThreatAction("block")},
		"unblock":   {"<threatId>: unblock the threat's source IP", runThreatAction("unblock")},
		"resolve":   {"<threatId>: mark a threat as resolved", runThreatAction("resolve")},
		"blocked":   {"list blocked IPs", runBlocked},
		"ip":        {"block|unblock <ip>: manual IP block on every host", runManualIP},
		"trace":     {"[-k n] <question>: ask the AI tracer", runTrace},
		"hosts":     {"list | add <ip> | update <id> | toggle <id> | delete <id>: collection hosts", runHosts},
		"dashboard": {"show the dashboard summary", runDashboard},
		"traffic":   {"[-export file.csv]: traffic statistics", runTraffic},
		"trend":     {"[-range 24h|7d|30d] [-export [file.csv]]: attack trend", runTrend},
		"tracing":   {"list tracing results", runTracing},
		"monitor":   {"[hostId]: host status list or one host's realtime status", runMonitor},
		"processes": {"list | kill <id> | trust <id>: monitored processes", runProcesses},
		"report":    {"generate <type> | history | rename <id> <title> | delete <id> | export <id> [file.md]", runReport},
		"watch":     {"dashboard|hosts|processes|tracing: poll a view until interrupted", runWatch},
		"stream":    {"print live IDS events until interrupted", runStream},
	}
}

// Auth

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("%w: sentinel-ctl login -u <user> -p <password>", errUsage)
	}
	if _, err := a.api.Login(ctx, *username, *password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", a.sess.User().Username)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := a.api.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	user := a.sess.User()
	if !a.sess.Authenticated() || user == nil {
		return client.ErrUnauthorized
	}
	if a.asJSON {
		return a.printJSON(user)
	}
	fmt.Fprintf(a.out, "%s (%s)\n", user.Username, user.Role)
	return nil
}

// Organizations

func runOrgs(ctx context.Context, a *app, args []string) error {
	sub, rest := subcommand(args, "list")
	switch sub {
	case "list":
		orgs, err := a.api.ListOrganizations(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(orgs))
		for _, o := range orgs {
			rows = append(rows, []string{o.ID, o.Name, fmt.Sprintf("%d/%d", o.MemberCount, o.MaxMembers), strconv.FormatBool(o.AdminPermission), o.CreatedAt})
		}
		return a.printTable(orgs, []string{"ID", "NAME", "MEMBERS", "ADMIN", "CREATED"}, rows)

	case "create", "update":
		fs := flag.NewFlagSet("orgs "+sub, flag.ContinueOnError)
		name := fs.String("name", "", "organization name")
		maxMembers := fs.Int("max", 10, "maximum member count")
		admin := fs.Bool("admin", false, "grant admin permission")
		var id string
		if sub == "update" {
			if len(rest) == 0 {
				return fmt.Errorf("%w: sentinel-ctl orgs update <id> -name ...", errUsage)
			}
			id, rest = rest[0], rest[1:]
		}
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *name == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}
		in := client.OrgInput{Name: *name, MaxMembers: *maxMembers, AdminPermission: *admin}
		var (
			org model.Organization
			err error
		)
		if sub == "create" {
			org, err = a.api.CreateOrganization(ctx, in)
		} else {
			org, err = a.api.UpdateOrganization(ctx, id, in)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Organization %s saved (id %s)\n", org.Name, org.ID)
		return nil

	case "delete":
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl orgs delete <id>", errUsage)
		}
		if err := a.api.DeleteOrganization(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Organization %s deleted\n", rest[0])
		return nil
	}
	return fmt.Errorf("%w: unknown orgs subcommand %q", errUsage, sub)
}

// Threats

func runThreats(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("threats", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	out := fs.String("export", "", "write the list as CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := a.api.ThreatHistory(ctx, *page, *size)
	if err != nil {
		return err
	}
	if *out != "" {
		return a.exportFile(*out, func(w io.Writer) error { return export.ThreatsCSV(w, events) })
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, threatRow(e))
	}
	return a.printTable(events, threatHeader, rows)
}

var threatHeader = []string{"ID", "TIME", "TYPE", "SOURCE", "TARGET", "RISK", "STATUS"}

func threatRow(e model.ThreatEvent) []string {
	return []string{e.ID, e.Timestamp, e.Type, e.SourceIP, e.TargetIP, string(e.RiskLevel), string(e.Status)}
}

func runThreatAction(action string) func(ctx context.Context, a *app, args []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%w: sentinel-ctl %s <threatId>", errUsage, action)
		}
		var err error
		switch action {
		case "block":
			err = a.api.BlockThreat(ctx, args[0])
		case "unblock":
			err = a.api.UnblockThreat(ctx, args[0])
		default:
			err = a.api.ResolveThreat(ctx, args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Threat %s: %s done\n", args[0], action)
		return nil
	}
}

func runBlocked(ctx context.Context, a *app, args []string) error {
	ips, err := a.api.BlockedIPs(ctx)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(ips)
	}
	if len(ips) == 0 {
		fmt.Fprintln(a.out, "No blocked IPs")
		return nil
	}
	for _, ip := range ips {
		fmt.Fprintln(a.out, ip)
	}
	return nil
}

func runManualIP(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 || (args[0] != "block" && args[0] != "unblock") {
		return fmt.Errorf("%w: sentinel-ctl ip block|unblock <ip>", errUsage)
	}
	var err error
	if args[0] == "block" {
		err = a.api.ManualBlock(ctx, args[1])
	} else {
		err = a.api.ManualUnblock(ctx, args[1])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s queued\n", args[0], args[1])
	return nil
}

func runTrace(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	topK := fs.Int("k", 5, "number of alerts given to the tracer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("%w: sentinel-ctl trace <question>", errUsage)
	}
	answer, err := a.api.TraceThreat(ctx, question, *topK)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(model.TraceAnswer{Answer: answer})
	}
	fmt.Fprintln(a.out, answer)
	return nil
}

// Collection hosts

func runHosts(ctx context.Context, a *app, args []string) error {
	sub, rest := subcommand(args, "list")
	switch sub {
	case "list":
		page, err := a.api.ListHosts(ctx, 1, 100)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(page.List))
		for _, h := range page.List {
			rows = append(rows, []string{strconv.Itoa(h.ID), h.HostIP, strconv.Itoa(h.CollectFreq), model.CollectStatusName(h.CollectStatus), h.CreateTime})
		}
		return a.printTable(page, []string{"ID", "HOST", "FREQ(s)", "STATUS", "CREATED"}, rows)

	case "add":
		fs := flag.NewFlagSet("hosts add", flag.ContinueOnError)
		freq := fs.Int("freq", 60, "collection frequency in seconds")
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl hosts add <ip> [-freq s]", errUsage)
		}
		ip := rest[0]
		if err := fs.Parse(rest[1:]); err != nil {
			return err
		}
		id, err := a.api.CreateHost(ctx, model.HostCollectionConfig{HostIP: ip, CollectFreq: *freq, CollectStatus: model.CollectRunning})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Host %s added (id %d)\n", ip, id)
		return nil

	case "update":
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl hosts update <id> [-ip ip] [-freq s] [-status n]", errUsage)
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: invalid host id %q", errUsage, rest[0])
		}
		fs := flag.NewFlagSet("hosts update", flag.ContinueOnError)
		ip := fs.String("ip", "", "new host IP")
		freq := fs.Int("freq", 0, "new frequency in seconds")
		status := fs.Int("status", -1, "new collect status (0 stopped, 1 running, 2 paused, 3 error)")
		if err := fs.Parse(rest[1:]); err != nil {
			return err
		}
		var update model.HostCollectionUpdate
		if *ip != "" {
			update.HostIP = ip
		}
		if *freq > 0 {
			update.CollectFreq = freq
		}
		if *status >= 0 {
			update.CollectStatus = status
		}
		if err := a.api.UpdateHost(ctx, id, update); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Host %d updated\n", id)
		return nil

	case "toggle":
		host, err := a.findHost(ctx, rest)
		if err != nil {
			return err
		}
		next, err := a.api.ToggleHost(ctx, host)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Host %d is now %s\n", host.ID, model.CollectStatusName(next))
		return nil

	case "delete":
		host, err := a.findHost(ctx, rest)
		if err != nil {
			return err
		}
		if err := a.api.DeleteHost(ctx, host.ID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Host %d (%s) deleted\n", host.ID, host.HostIP)
		return nil
	}
	return fmt.Errorf("%w: unknown hosts subcommand %q", errUsage, sub)
}

func (a *app) findHost(ctx context.Context, args []string) (model.HostCollectionConfig, error) {
	if len(args) == 0 {
		return model.HostCollectionConfig{}, fmt.Errorf("%w: host id required", errUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return model.HostCollectionConfig{}, fmt.Errorf("%w: invalid host id %q", errUsage, args[0])
	}
	page, err := a.api.ListHosts(ctx, 1, 1000)
	if err != nil {
		return model.HostCollectionConfig{}, err
	}
	for _, h := range page.List {
		if h.ID == id {
			return h, nil
		}
	}
	return model.HostCollectionConfig{}, fmt.Errorf("host %d: %w", id, client.ErrNotFound)
}

// Dashboard and analysis

func runDashboard(ctx context.Context, a *app, args []string) error {
	summary, err := a.api.DashboardSummary(ctx)
	if err != nil {
		return err
	}
	return a.printSummary(summary)
}

func (a *app) printSummary(s model.DashboardSummary) error {
	return a.printTable(s, []string{"SCORE", "ATTACKS TODAY", "ACTIVE THREATS", "ASSETS", "IDS"}, [][]string{{
		strconv.Itoa(s.SecurityScore),
		strconv.FormatInt(s.TotalAttacksToday, 10),
		strconv.FormatInt(s.ActiveThreats, 10),
		strconv.FormatInt(s.ProtectedAssets, 10),
		s.IDSStatus,
	}})
}

func runTraffic(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("traffic", flag.ContinueOnError)
	out := fs.String("export", "", "write the statistics as CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	stats, err := a.api.Traffic(ctx, 1, 100)
	if err != nil {
		return err
	}
	if *out != "" {
		return a.exportFile(*out, func(w io.Writer) error { return export.TrafficCSV(w, stats) })
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{s.StatTime, s.AttackType, s.SourceIP, s.TargetIP, strconv.Itoa(s.AttackCount)})
	}
	return a.printTable(stats, []string{"TIME", "TYPE", "SOURCE", "TARGET", "ATTACKS"}, rows)
}

func runTrend(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("trend", flag.ContinueOnError)
	rangeName := fs.String("range", "24h", "24h, 7d or 30d")
	doExport := fs.Bool("export", false, "write the trend as CSV (file name from -o or threat_analysis_<date>.csv)")
	out := fs.String("o", "", "CSV output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	points, err := a.api.Trend(ctx, *rangeName)
	if err != nil {
		return err
	}
	if *doExport || *out != "" {
		path := *out
		if path == "" {
			path = export.DefaultTrendFileName(time.Now())
		}
		return a.exportFile(path, func(w io.Writer) error { return export.TrendCSV(w, points) })
	}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Time, strconv.FormatInt(p.Count, 10)})
	}
	return a.printTable(points, []string{"TIME", "ATTACKS"}, rows)
}

func runTracing(ctx context.Context, a *app, args []string) error {
	results, err := a.api.TracingResults(ctx, 1, 100)
	if err != nil {
		return err
	}
	return a.printTracing(results)
}

func (a *app) printTracing(results []model.TracingResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{strconv.Itoa(r.ID), r.ThreatSource, r.MaliciousIP, r.AttackCmd, r.MalwareOrigin, r.CreateTime})
	}
	return a.printTable(results, []string{"ID", "SOURCE", "MALICIOUS IP", "COMMAND", "ORIGIN", "CREATED"}, rows)
}

// Monitoring

func runMonitor(ctx context.Context, a *app, args []string) error {
	if len(args) > 0 {
		status, err := a.api.HostStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return a.printHostStatus([]model.HostStatus{status})
	}
	statuses, err := a.api.HostMonitorList(ctx, 1, 100)
	if err != nil {
		return err
	}
	return a.printHostStatus(statuses)
}

func (a *app) printHostStatus(statuses []model.HostStatus) error {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.HostID,
			fmt.Sprintf("%.1f%%", s.CPUUsage),
			fmt.Sprintf("%.1f%%", s.MemoryUsage),
			fmt.Sprintf("%.1f%%", s.DiskUsage),
			strconv.Itoa(s.NetworkConn),
			s.FileStatus,
			s.MonitorTime,
		})
	}
	return a.printTable(statuses, []string{"HOST", "CPU", "MEM", "DISK", "CONN", "FILES", "TIME"}, rows)
}

func runProcesses(ctx context.Context, a *app, args []string) error {
	sub, rest := subcommand(args, "list")
	switch sub {
	case "list":
		procs, err := a.api.Processes(ctx, 1, 100)
		if err != nil {
			return err
		}
		return a.printProcesses(procs)
	case "kill", "trust":
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl processes %s <id>", errUsage, sub)
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: invalid process id %q", errUsage, rest[0])
		}
		if sub == "kill" {
			err = a.api.KillProcess(ctx, id)
		} else {
			err = a.api.TrustProcess(ctx, id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Process %d: %s done\n", id, sub)
		return nil
	}
	return fmt.Errorf("%w: unknown processes subcommand %q", errUsage, sub)
}

func (a *app) printProcesses(procs []model.ProcessRecord) error {
	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, []string{strconv.Itoa(p.ID), strconv.Itoa(p.PID), p.Name, p.Status, p.AbnormalReason})
	}
	return a.printTable(procs, []string{"ID", "PID", "NAME", "STATUS", "REASON"}, rows)
}

// Reports

func runReport(ctx context.Context, a *app, args []string) error {
	sub, rest := subcommand(args, "history")
	switch sub {
	case "generate":
		reportType := "Daily"
		if len(rest) > 0 {
			reportType = rest[0]
		}
		content, err := a.api.GenerateReport(ctx, reportType)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, content)
		return nil

	case "history":
		reports, err := a.api.ReportHistory(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			rows = append(rows, []string{strconv.Itoa(r.ID), r.Title, r.ReportType, r.CreateTime})
		}
		return a.printTable(reports, []string{"ID", "TITLE", "TYPE", "CREATED"}, rows)

	case "rename":
		if len(rest) < 2 {
			return fmt.Errorf("%w: sentinel-ctl report rename <id> <title>", errUsage)
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: invalid report id %q", errUsage, rest[0])
		}
		if err := a.api.RenameReport(ctx, id, strings.Join(rest[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Report %d renamed\n", id)
		return nil

	case "delete":
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl report delete <id>", errUsage)
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: invalid report id %q", errUsage, rest[0])
		}
		if err := a.api.DeleteReport(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Report %d deleted\n", id)
		return nil

	case "export":
		if len(rest) == 0 {
			return fmt.Errorf("%w: sentinel-ctl report export <id> [file.md]", errUsage)
		}
		id, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: invalid report id %q", errUsage, rest[0])
		}
		reports, err := a.api.ReportHistory(ctx)
		if err != nil {
			return err
		}
		for _, r := range reports {
			if r.ID != id {
				continue
			}
			path := export.DefaultReportFileName(time.Now())
			if len(rest) > 1 {
				path = rest[1]
			}
			return a.exportFile(path, func(w io.Writer) error { return export.Markdown(w, r.Title, r.Content) })
		}
		return fmt.Errorf("report %d: %w", id, client.ErrNotFound)
	}
	return fmt.Errorf("%w: unknown report subcommand %q", errUsage, sub)
}

// Output helpers

// subcommand splits off the first argument unless it is a flag.
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable prints v as JSON in -json mode and as an aligned table otherwise.
func (a *app) printTable(v interface{}, header []string, rows [][]string) error {
	if a.asJSON {
		return a.printJSON(v)
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No records")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (a *app) exportFile(path string, write func(io.Writer) error) error {
	if err := export.ToFile(path, write); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", path)
	return nil
}
