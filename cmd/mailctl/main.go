// Command mailctl reads a mailbox from the terminal and prints JSON.
//
//	mailctl token set|delete <provider>
//	mailctl check|folders <provider>
//	mailctl inbox <provider> [--folder f] [--size n] [--cursor c] [--from a] [--subject s] [--unread]
//	mailctl detail|attachments <provider> <message-id>
//	mailctl download <provider> <message-id> <attachment-id> -o file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: mailctl <command> [flags] <args>

commands:
  token set <provider>        store an access token (read from --token or stdin)
  token delete <provider>     remove a stored access token
  check <provider>            report whether the token is accepted
  folders <provider>          list navigable folders
  inbox <provider>            list one page of messages
  detail <provider> <id>      show one message
  attachments <provider> <id> list attachment metadata
  download <provider> <id> <attachment-id> -o file
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "mailctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "token":
		return runToken(rest, stdin, stdout)
	case "check":
		return runCheck(ctx, rest, stdout, stderr)
	case "folders":
		return runFolders(ctx, rest, stdout, stderr)
	case "inbox":
		return runInbox(ctx, rest, stdout, stderr)
	case "detail":
		return runDetail(ctx, rest, stdout, stderr)
	case "attachments":
		return runAttachments(ctx, rest, stdout, stderr)
	case "download":
		return runDownload(ctx, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
