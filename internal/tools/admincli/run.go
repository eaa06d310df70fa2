package admincli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/clc-ministry/forms-backend/pkg/adminclient"
	"github.com/clc-ministry/forms-backend/pkg/cognito"
	"github.com/clc-ministry/forms-backend/pkg/utils"
)

// exportPollInterval is how often export -wait checks the job.
var exportPollInterval = 2 * time.Second

type sessionProvider interface {
	adminclient.TokenSource
	SignIn(ctx context.Context, username, password string) (*cognito.Session, error)
	Restore(ctx context.Context) (*cognito.Session, error)
	SignOut(ctx context.Context) error
}

// IO bundles the streams a command reads and writes.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Run executes cfg.Command.
func Run(ctx context.Context, cfg Config, stdio IO) error {
	if cfg.Command == "hash-password" {
		return hashPassword(stdio)
	}
	httpClient := &http.Client{}
	store := cognito.FileStore{Path: cfg.SessionFile}
	var provider sessionProvider
	if cfg.Auth == AuthLocal {
		provider = newLocalProvider(cfg.APIBase, httpClient, store)
	} else {
		p, err := cognito.NewProvider(ctx, cognito.Config{
			Region:     cfg.CognitoRegion,
			UserPoolID: cfg.CognitoPoolID,
			ClientID:   cfg.CognitoClientID,
			Domain:     cfg.CognitoDomain,
		}, store)
		if err != nil {
			return err
		}
		provider = p
	}
	return run(ctx, cfg, provider, httpClient, stdio)
}

func run(ctx context.Context, cfg Config, provider sessionProvider, httpClient *http.Client, stdio IO) error {
	switch cfg.Command {
	case "login":
		return login(ctx, cfg, provider, stdio)
	case "logout":
		if err := provider.SignOut(ctx); err != nil && !errors.Is(err, cognito.ErrNoSession) {
			fmt.Fprintf(stdio.Err, "warning: %v\n", err)
		}
		fmt.Fprintln(stdio.Out, "Signed out.")
		if cfg.Auth == AuthCognito && cfg.CognitoDomain != "" && cfg.LogoutRedirect != "" {
			fmt.Fprintf(stdio.Out, "To end the browser session too, open:\n  %s\n", cognito.LogoutURL(cognito.Config{
				ClientID: cfg.CognitoClientID,
				Domain:   cfg.CognitoDomain,
			}, cfg.LogoutRedirect))
		}
		return nil
	}

	session, err := provider.Restore(ctx)
	if err != nil {
		if errors.Is(err, cognito.ErrNoSession) {
			return errors.New("not signed in; run: admin login <username>")
		}
		return err
	}
	client := adminclient.New(cfg.APIBase, provider)
	client.HTTPClient = httpClient
	client.Timeout = cfg.Timeout

	err = dispatch(ctx, cfg, client, session, stdio)
	if adminclient.IsNetworkError(err) {
		return fmt.Errorf("%w (is %s reachable?)", err, cfg.APIBase)
	}
	return err
}

func dispatch(ctx context.Context, cfg Config, client *adminclient.Client, session *cognito.Session, stdio IO) error {
	args := cfg.Args
	switch cfg.Command {
	case "whoami":
		return printResult(cfg, stdio.Out, session.Claims, func(w io.Writer) {
			fmt.Fprintf(w, "%s <%s>\nexpires %s\n", session.Claims.Username, session.Claims.Email, session.ExpiresAt.Local().Format(time.RFC1123))
		})
	case "list":
		coll, err := collectionArg(args, 1)
		if err != nil {
			return err
		}
		if coll == adminclient.CollectionOrders {
			orders, err := client.ListOrders(ctx)
			if err != nil {
				return err
			}
			return printResult(cfg, stdio.Out, orders, func(w io.Writer) { printOrders(w, orders) })
		}
		regs, err := client.ListRegistrations(ctx)
		if err != nil {
			return err
		}
		return printResult(cfg, stdio.Out, regs, func(w io.Writer) { printRegistrations(w, regs) })
	case "approve":
		if len(args) != 1 {
			return errors.New("usage: approve <orderId>")
		}
		if err := client.ApproveOrder(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdio.Out, "Order %s approved.\n", args[0])
		return nil
	case "attendance":
		fs := flag.NewFlagSet("attendance", flag.ContinueOnError)
		fs.SetOutput(stdio.Err)
		absent := fs.Bool("absent", false, "mark absent instead of present")
		if err := fs.Parse(flagsFirst(args)); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("usage: attendance <registrationId> [-absent]")
		}
		if err := client.SetAttendance(ctx, fs.Arg(0), !*absent); err != nil {
			return err
		}
		state := "present"
		if *absent {
			state = "absent"
		}
		fmt.Fprintf(stdio.Out, "Registration %s marked %s.\n", fs.Arg(0), state)
		return nil
	case "delete":
		coll, err := collectionArg(args, 2)
		if err != nil {
			return err
		}
		if err := client.Delete(ctx, coll, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdio.Out, "Deleted %s %s.\n", coll, args[1])
		return nil
	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(stdio.Err)
		wait := fs.Bool("wait", false, "wait for the export and print its download URL")
		if err := fs.Parse(flagsFirst(args)); err != nil {
			return err
		}
		coll, err := collectionArg(fs.Args(), 1)
		if err != nil {
			return err
		}
		jobID, err := client.RequestExport(ctx, coll)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdio.Out, "Export job %s queued.\n", jobID)
		if !*wait {
			return nil
		}
		job, err := waitForExport(ctx, client, coll, jobID)
		if err != nil {
			return err
		}
		return printExport(cfg, stdio.Out, job)
	case "export-status":
		coll, err := collectionArg(args, 2)
		if err != nil {
			return err
		}
		job, err := client.ExportStatus(ctx, coll, args[1])
		if err != nil {
			return err
		}
		return printExport(cfg, stdio.Out, job)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

func login(ctx context.Context, cfg Config, provider sessionProvider, stdio IO) error {
	if len(cfg.Args) != 1 {
		return errors.New("usage: login <username>")
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprint(stdio.Err, "Password: ")
		line, err := readLine(stdio.In)
		if err != nil {
			return err
		}
		password = line
	}
	session, err := provider.SignIn(ctx, cfg.Args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdio.Out, "Signed in as %s until %s.\n", session.Claims.Username, session.ExpiresAt.Local().Format(time.Kitchen))
	return nil
}

func hashPassword(stdio IO) error {
	fmt.Fprint(stdio.Err, "Password: ")
	password, err := readLine(stdio.In)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdio.Out, hash)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func waitForExport(ctx context.Context, client *adminclient.Client, coll adminclient.Collection, jobID string) (*adminclient.ExportJob, error) {
	ticker := time.NewTicker(exportPollInterval)
	defer ticker.Stop()
	for {
		job, err := client.ExportStatus(ctx, coll, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status == "done" || job.Status == "failed" {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func collectionArg(args []string, n int) (adminclient.Collection, error) {
	if len(args) != n {
		return "", fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	switch c := adminclient.Collection(args[0]); c {
	case adminclient.CollectionOrders, adminclient.CollectionWorkshop:
		return c, nil
	}
	return "", fmt.Errorf("unknown collection %q (want orders or workshop)", args[0])
}

// flagsFirst moves "-x" arguments ahead of positional ones so flags may follow them.
func flagsFirst(args []string) []string {
	var flags, rest []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
		} else {
			rest = append(rest, a)
		}
	}
	return append(flags, rest...)
}

func printResult(cfg Config, w io.Writer, v any, table func(io.Writer)) error {
	if cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(w)
	return nil
}

func printExport(cfg Config, w io.Writer, job *adminclient.ExportJob) error {
	return printResult(cfg, w, job, func(w io.Writer) {
		fmt.Fprintf(w, "Export %s: %s\n", job.JobID, job.Status)
		if job.URL != "" {
			fmt.Fprintf(w, "%d rows: %s\n", job.Rows, job.URL)
		}
		if job.Error != "" {
			fmt.Fprintf(w, "error: %s\n", job.Error)
		}
	})
}

func printOrders(w io.Writer, orders []adminclient.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tNAME\tPHONE\tQTY\tSTATUS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", o.OrderID, o.Name, o.Phone, o.Quantity, o.Status, o.CreatedAt)
	}
	tw.Flush()
}

func printRegistrations(w io.Writer, regs []adminclient.Registration) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTRATION\tNAME\tPHONE\tGRADE\tPRESENT\tCREATED")
	for _, r := range regs {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%t\t%s\n", r.RegistrationID, r.FirstName, r.LastName, r.PhoneNumber, r.Grade, r.Present, r.CreatedAt)
	}
	tw.Flush()
}
