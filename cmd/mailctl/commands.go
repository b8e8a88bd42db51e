package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/config"
	"github.com/nhle/mail-integration/internal/credential"
	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/reader"
)

// TokenEnv overrides the keyring when --token is not given.
const TokenEnv = "MAILCTL_TOKEN"

// AccountEnv supplies the login name for providers that need one.
const AccountEnv = "MAILCTL_ACCOUNT"

// tokenSource is the part of the credential store the commands read.
type tokenSource interface {
	Token(provider, account string) (string, error)
}

type commonFlags struct {
	configPath string
	token      string
	account    string
	verbose    bool
}

func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &commonFlags{}
	fs.StringVarP(&c.configPath, "config", "c", config.DefaultConfigPath(), "path to the YAML config file")
	fs.StringVar(&c.token, "token", "", "access token (overrides "+TokenEnv+" and the keyring)")
	fs.StringVar(&c.account, "account", os.Getenv(AccountEnv), "mailbox login name (imap)")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log provider calls to stderr")
	return fs, c
}

// resolveToken picks the token from the flag, then the environment, then
// the keyring.
func resolveToken(flagValue, name, account string, ring func() (tokenSource, error)) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(TokenEnv); env != "" {
		return env, nil
	}
	src, err := ring()
	if err != nil {
		return "", err
	}
	token, err := src.Token(name, account)
	if errors.Is(err, credential.ErrNotFound) {
		return "", fmt.Errorf("no token for %s: pass --token, set %s or run `mailctl token set %s`",
			name, TokenEnv, name)
	}
	return token, err
}

func openKeyring(cfg *config.Config) func() (tokenSource, error) {
	return func() (tokenSource, error) {
		return credential.Open(credential.Config{
			Service: cfg.Credentials.Service,
			FileDir: cfg.Credentials.FileDir,
		})
	}
}

// openReader loads configuration and builds a reader for the provider
// named by the first positional argument.
func openReader(fs *pflag.FlagSet, c *commonFlags) (*reader.Reader, error) {
	name := fs.Arg(0)
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	if c.verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	registry := reader.NewRegistry(cfg.Providers, log)
	if !registry.Has(name) {
		// Resolve the unsupported-provider error before touching the keyring.
		return reader.New(registry, name, provider.Credentials{})
	}

	token, err := resolveToken(c.token, name, c.account, openKeyring(cfg))
	if err != nil {
		return nil, err
	}
	return reader.New(registry, name, provider.Credentials{
		AccessToken: token,
		Account:     c.account,
	}, reader.WithLogger(log))
}

func parse(fs *pflag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	if fs.NArg() != nargs {
		return fmt.Errorf("%s expects %d argument(s): %w", fs.Name(), nargs, errUsage)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runToken(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	action := args[0]
	fs, c := newFlagSet("token "+action, io.Discard)
	if err := parse(fs, args[1:], 1); err != nil {
		return err
	}
	name := strings.ToLower(fs.Arg(0))

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	store, err := credential.Open(credential.Config{
		Service: cfg.Credentials.Service,
		FileDir: cfg.Credentials.FileDir,
	})
	if err != nil {
		return err
	}

	switch action {
	case "set":
		token := c.token
		if token == "" {
			if token, err = readToken(stdin, name); err != nil {
				return err
			}
		}
		if token == "" {
			return errors.New("empty token")
		}
		if err := store.SetToken(name, c.account, token); err != nil {
			return err
		}
		return printJSON(stdout, map[string]string{"stored": credential.Key(name, c.account)})
	case "delete":
		if err := store.DeleteToken(name, c.account); err != nil {
			return err
		}
		return printJSON(stdout, map[string]string{"deleted": credential.Key(name, c.account)})
	default:
		return fmt.Errorf("unknown token action %q: %w", action, errUsage)
	}
}

// isTerminal reports whether r is an interactive terminal.
var isTerminal = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// promptToken asks for the token with a masked input.
var promptToken = func(providerName string) (string, error) {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Access Token").
				Description("OAuth access token for " + providerName).
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// readToken prompts on a terminal and reads one line otherwise.
func readToken(stdin io.Reader, providerName string) (string, error) {
	if isTerminal(stdin) {
		return promptToken(providerName)
	}
	return readLine(stdin)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("check", stderr)
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	valid, err := r.IsTokenValid(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]bool{"valid": valid})
}

func runFolders(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("folders", stderr)
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string][]mail.Folder{"folders": r.Folders(ctx)})
}

type inboxFlags struct {
	folder  string
	size    int
	cursor  string
	from    string
	subject string
	unread  bool
}

func (f inboxFlags) options() (provider.FetchOptions, error) {
	folder, err := mail.ParseFolder(f.folder)
	if err != nil {
		return provider.FetchOptions{}, err
	}
	opts := provider.FetchOptions{PageSize: f.size, Cursor: f.cursor, Folder: folder}

	var filterOpts []mail.FilterOption
	if f.from != "" {
		filterOpts = append(filterOpts, mail.WithFrom(f.from))
	}
	if f.subject != "" {
		filterOpts = append(filterOpts, mail.WithSubject(f.subject))
	}
	if f.unread {
		filterOpts = append(filterOpts, mail.WithRead(false))
	}
	if len(filterOpts) > 0 {
		if opts.Filter, err = mail.NewSearchFilter(filterOpts...); err != nil {
			return provider.FetchOptions{}, err
		}
	}
	return opts, nil
}

func runInbox(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("inbox", stderr)
	var f inboxFlags
	fs.StringVar(&f.folder, "folder", string(mail.FolderInbox), "folder to list")
	fs.IntVar(&f.size, "size", mail.DefaultPageSize, "page size")
	fs.StringVar(&f.cursor, "cursor", "", "continuation cursor from a previous page")
	fs.StringVar(&f.from, "from", "", "sender address")
	fs.StringVar(&f.subject, "subject", "", "subject substring")
	fs.BoolVar(&f.unread, "unread", false, "only unread messages")
	if err := parse(fs, args, 1); err != nil {
		return err
	}

	opts, err := f.options()
	if err != nil {
		return err
	}
	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	res, err := r.FetchEmails(ctx, opts)
	if err != nil {
		return err
	}

	out := struct {
		Emails     []mail.Message `json:"emails"`
		NextCursor *string        `json:"next_cursor"`
	}{Emails: res.Messages}
	if res.NextCursor != "" {
		out.NextCursor = &res.NextCursor
	}
	return printJSON(stdout, out)
}

func runDetail(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("detail", stderr)
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	d, err := r.EmailDetail(ctx, fs.Arg(1))
	if err != nil {
		return err
	}
	return printJSON(stdout, d)
}

func runAttachments(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("attachments", stderr)
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	atts, err := r.Attachments(ctx, fs.Arg(1))
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string][]mail.Attachment{"attachments": atts})
}

func runDownload(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, c := newFlagSet("download", stderr)
	output := fs.StringP("output", "o", "", "file to write the attachment to")
	if err := parse(fs, args, 3); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("download requires -o: %w", errUsage)
	}

	r, err := openReader(fs, c)
	if err != nil {
		return err
	}
	content, err := r.DownloadAttachment(ctx, fs.Arg(1), fs.Arg(2))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, content, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", *output, err)
	}
	return printJSON(stdout, map[string]interface{}{"path": *output, "size": len(content)})
}
