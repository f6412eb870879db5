// Command bankcli is a terminal front end for the banking client: it logs in,
// shows the balance and history, sends transfers and manages recipients,
// cards and notifications. The session persists between invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"bank-client/pkg/app"
	"bank-client/pkg/bankerr"
	"bank-client/pkg/config"
)

type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"login":         {"login -email EMAIL [-password PASSWORD]", runLogin},
	"register":      {"register -name NAME -email EMAIL [-password PASSWORD]", runRegister},
	"logout":        {"logout", runLogout},
	"status":        {"status", runStatus},
	"balance":       {"balance", runBalance},
	"history":       {"history", runHistory},
	"send":          {"send -to ACCOUNT -amount AMOUNT [-desc TEXT]", runSend},
	"recipients":    {"recipients [list | search NUMBER | add NUMBER | rename ID NAME | delete ID]", runRecipients},
	"cards":         {"cards [ID]", runCards},
	"notifications": {"notifications [list | read ID | read-all]", runNotifications},
	"serve":         {"serve", runServe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bankcli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "config file (yaml, json or toml)")
	apiURL := fs.String("api", "", "backend base URL, overrides the config")
	fs.Usage = func() { usage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "bankcli: %v\n", err)
		return 1
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if name != "serve" {
		cfg.RefreshInterval = 0
		cfg.StatusAddr = ""
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "bankcli: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "bankcli: %v\n", err)
		return 1
	}

	c := &cli{app: a, in: stdin, out: stdout, errOut: stderr}
	if err := cmd.run(ctx, c, fs.Args()[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "%s\nusage: bankcli %s\n", ue.msg, cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "Error: %s\n", bankerr.UserMessage(err))
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bankcli [-config FILE] [-api URL] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }
