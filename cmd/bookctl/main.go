// Command bookctl manages books through the GraphQL API.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"bookdash/internal/client"
	"bookdash/internal/config"
	"bookdash/internal/logging"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const usage = `usage: bookctl [--token T] [--api URL] <command> [flags]

commands:
  list                                    list all books
  create --name N [--description D]       create a book
  update ID --name N [--description D]    replace a book's fields
  delete ID [--yes]                       delete a book
`

// bookAPI is the part of client.Client the commands use.
type bookAPI interface {
	Books(ctx context.Context) ([]client.Book, error)
	CreateBook(ctx context.Context, name, description string) (client.Book, error)
	UpdateBook(ctx context.Context, id int64, name, description string) (client.Book, error)
	DeleteBook(ctx context.Context, id int64) (client.Book, error)
}

type cli struct {
	api    bookAPI
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	global := pflag.NewFlagSet("bookctl", pflag.ContinueOnError)
	global.SetOutput(errOut)
	global.SetInterspersed(false)
	token := global.String("token", "", "Bearer token to send (overrides BOOKDASH_TOKEN)")
	apiURL := global.String("api", "", "GraphQL endpoint (overrides BOOKDASH_API_URL)")
	verbose := global.BoolP("verbose", "v", false, "Log token and transport activity")
	global.Usage = func() { fmt.Fprint(errOut, usage) }
	if err := parseFlags(global, args, errOut); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.Must(level, "console")
	defer func() { _ = logger.Sync() }()

	c := &cli{
		api:    newAPI(ctx, cfg, logger),
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
	}
	return c.dispatch(ctx, global.Arg(0), global.Args()[1:])
}

// newAPI picks the token source: a static token wins over client credentials,
// and with neither the client calls anonymously.
func newAPI(ctx context.Context, cfg config.Client, logger *zap.Logger) *client.Client {
	var source oauth2.TokenSource
	switch {
	case cfg.Token != "":
		source = client.StaticToken(cfg.Token)
	case cfg.HasClientCredentials():
		cc := &client.ClientCredentials{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Audience:     cfg.Audience,
			HTTPClient:   &http.Client{Timeout: cfg.Timeout},
		}
		source = cc.TokenSource(ctx)
	}
	session := client.NewSession(source, client.WithRefreshSkew(cfg.RefreshSkew))
	return client.New(cfg.APIURL, session, logger,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) int {
	var err error
	switch cmd {
	case "list":
		err = c.list(ctx)
	case "create":
		err = c.create(ctx, args)
	case "update":
		err = c.update(ctx, args)
	case "delete":
		err = c.delete(ctx, args)
	case "help":
		fmt.Fprint(c.out, usage)
		return 0
	default:
		fmt.Fprintf(c.errOut, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	return c.report(err)
}

var errUsage = errors.New("usage")

// parseFlags prints parse failures to errOut, since pflag's ContinueOnError
// mode leaves that to the caller. A help request comes back as pflag.ErrHelp.
func parseFlags(fs *pflag.FlagSet, args []string, errOut io.Writer) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return err
	}
	fmt.Fprintln(errOut, "error:", err)
	return errUsage
}

func (c *cli) report(err error) int {
	var apiErr *client.Error
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if apiErr.Retryable {
			msg += " (retryable)"
		}
		fmt.Fprintln(c.errOut, "error:", msg)
	default:
		fmt.Fprintln(c.errOut, "error:", err)
	}
	return 1
}

func (c *cli) list(ctx context.Context) error {
	books, err := c.api.Books(ctx)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Fprintln(c.out, "no books")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", b.ID, b.Name, b.Description)
	}
	return tw.Flush()
}

// bookFlags parses --name and --description for create and update.
func (c *cli) bookFlags(cmd string, args []string) (name, description string, rest []string, err error) {
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	fs.StringVar(&name, "name", "", "Book name")
	fs.StringVar(&description, "description", "", "Book description")
	if err := parseFlags(fs, args, c.errOut); err != nil {
		return "", "", nil, err
	}
	return name, description, fs.Args(), nil
}

func (c *cli) create(ctx context.Context, args []string) error {
	name, description, rest, err := c.bookFlags("create", args)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		fmt.Fprintln(c.errOut, "create takes no positional arguments")
		return errUsage
	}
	b, err := c.api.CreateBook(ctx, name, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created book %d: %s\n", b.ID, b.Name)
	return nil
}

func (c *cli) update(ctx context.Context, args []string) error {
	name, description, rest, err := c.bookFlags("update", args)
	if err != nil {
		return err
	}
	id, err := c.bookID(rest)
	if err != nil {
		return err
	}
	b, err := c.api.UpdateBook(ctx, id, name, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "updated book %d: %s\n", b.ID, b.Name)
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	yes := fs.BoolP("yes", "y", false, "Delete without asking")
	if err := parseFlags(fs, args, c.errOut); err != nil {
		return err
	}
	id, err := c.bookID(fs.Args())
	if err != nil {
		return err
	}
	if !*yes && !c.confirm(fmt.Sprintf("Delete book %d?", id)) {
		fmt.Fprintln(c.out, "aborted")
		return nil
	}
	b, err := c.api.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted book %d: %s\n", b.ID, b.Name)
	return nil
}

func (c *cli) bookID(args []string) (int64, error) {
	if len(args) != 1 {
		fmt.Fprintln(c.errOut, "expected exactly one book ID")
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil || id <= 0 {
		fmt.Fprintf(c.errOut, "invalid book ID %q\n", args[0])
		return 0, errUsage
	}
	return id, nil
}

// confirm asks on out and accepts only "y" or "yes".
func (c *cli) confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
