package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"bank-client/pkg/app"
	"bank-client/pkg/bankerr"
	"bank-client/pkg/models"
	"bank-client/pkg/state"
)

type cli struct {
	app    *app.App
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newFlags(name string, c *cli) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *cli) password(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	if env := os.Getenv("BANK_PASSWORD"); env != "" {
		return env, nil
	}
	return readSecret(c.in, c.out, "Password: ")
}

func (c *cli) requireSession() error {
	if !c.app.Session.Authenticated() {
		return bankerr.New("cli", bankerr.ErrNotAuthenticated, "")
	}
	return nil
}

func runLogin(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("login", c)
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *email == "" {
		return usageError{"email is required"}
	}

	password, err := c.password(*pass)
	if err != nil {
		return err
	}
	if err := c.app.Session.Login(ctx, *email, password); err != nil {
		return err
	}

	snap := c.app.Store.Snapshot()
	fmt.Fprintf(c.out, "Welcome, %s.\n", snap.Session.User.Name)
	printBalance(c.out, snap.Account)
	return nil
}

func runRegister(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("register", c)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if *name == "" || *email == "" {
		return usageError{"name and email are required"}
	}

	password, err := c.password(*pass)
	if err != nil {
		return err
	}
	if err := c.app.Session.Register(ctx, *name, *email, password); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account created. Welcome, %s.\n", c.app.Store.Snapshot().Session.User.Name)
	return nil
}

func runLogout(ctx context.Context, c *cli, args []string) error {
	c.app.Session.Logout(ctx)
	fmt.Fprintln(c.out, "Logged out.")
	return nil
}

func runStatus(ctx context.Context, c *cli, args []string) error {
	snap := c.app.Store.Snapshot()
	fmt.Fprintf(c.out, "Session: %s\n", snap.Session.Status)
	if snap.Session.User != nil {
		fmt.Fprintf(c.out, "User:    %s <%s>\n", snap.Session.User.Name, snap.Session.User.Email)
	}
	fmt.Fprintf(c.out, "Backend: %s\n", c.app.Config.APIURL)
	return nil
}

func runBalance(ctx context.Context, c *cli, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.app.Account.Refresh(ctx, nil); err != nil {
		return err
	}
	printBalance(c.out, c.app.Store.Snapshot().Account)
	return nil
}

func runHistory(ctx context.Context, c *cli, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.app.Transfers.Refresh(ctx, nil); err != nil {
		return err
	}

	list := c.app.Store.Snapshot().Transfers.Transfers
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No transfers yet.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDIRECTION\tCOUNTERPARTY\tACCOUNT\tAMOUNT\tDESCRIPTION")
	for _, t := range list {
		sign := "-"
		if t.Direction == models.DirectionReceived {
			sign = "+"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%.2f\t%s\n",
			formatTime(t.Timestamp), t.Direction, t.CounterpartyName, t.CounterpartyAccount, sign, t.Amount, t.Description)
	}
	return tw.Flush()
}

func runSend(ctx context.Context, c *cli, args []string) error {
	fs := newFlags("send", c)
	to := fs.String("to", "", "destination account number")
	amount := fs.Float64("amount", 0, "amount to send")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.app.Account.Refresh(ctx, nil); err != nil {
		return err
	}

	transfer, err := c.app.Transfers.Send(ctx, *to, *amount, *desc)
	if err != nil {
		return err
	}

	name := transfer.CounterpartyName
	if name == "" {
		name = transfer.CounterpartyAccount
	}
	fmt.Fprintf(c.out, "Sent $%.2f to %s.\n", transfer.Amount, name)
	printBalance(c.out, c.app.Store.Snapshot().Account)
	return nil
}

func runRecipients(ctx context.Context, c *cli, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		if err := c.app.Recipients.Refresh(ctx, nil); err != nil {
			return err
		}
		printRecipients(c.out, c.app.Store.Snapshot().Recipients.Recipients)
		return nil

	case "search", "add":
		if len(args) != 1 {
			return usageError{sub + " needs an account number"}
		}
		match, err := c.app.Recipients.Search(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Found %s (%s, %s %s)\n", match.Name, match.AccountNumber, match.Bank, match.AccountType)
		if sub == "search" {
			return nil
		}
		recipient, err := c.app.Recipients.Create(ctx, *match)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Saved %s as recipient %s.\n", recipient.Name, recipient.ID)
		return nil

	case "rename":
		if len(args) < 2 {
			return usageError{"rename needs an id and a name"}
		}
		if err := c.app.Recipients.Refresh(ctx, nil); err != nil {
			return err
		}
		name := strings.Join(args[1:], " ")
		updated, err := c.app.Recipients.Update(ctx, models.ID(args[0]), models.RecipientUpdate{Name: &name})
		if err != nil {
			return err
		}
		if updated != nil {
			name = updated.Name
		}
		fmt.Fprintf(c.out, "Recipient %s renamed to %s.\n", args[0], name)
		return nil

	case "delete":
		if len(args) != 1 {
			return usageError{"delete needs an id"}
		}
		if err := c.app.Recipients.Delete(ctx, models.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Recipient %s deleted.\n", args[0])
		return nil
	}
	return usageError{fmt.Sprintf("unknown recipients command %q", sub)}
}

func runCards(ctx context.Context, c *cli, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	if len(args) == 1 {
		card, err := c.app.Cards.Select(ctx, nil, models.ID(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %s\n", strings.ToUpper(string(card.Type)), card.Brand)
		fmt.Fprintf(c.out, "Number:  %s\n", card.Masked())
		fmt.Fprintf(c.out, "Holder:  %s\n", card.Holder)
		fmt.Fprintf(c.out, "Expires: %s\n", card.Expiry)
		fmt.Fprintf(c.out, "Balance: $%.2f\n", card.Balance)
		return nil
	}

	if err := c.app.Cards.Refresh(ctx, nil); err != nil {
		return err
	}
	cards := c.app.Store.Snapshot().Cards.Cards
	if len(cards) == 0 {
		fmt.Fprintln(c.out, "No cards.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tBRAND\tNUMBER\tEXPIRES")
	for _, card := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", card.ID, card.Type, card.Brand, card.Masked(), card.Expiry)
	}
	return tw.Flush()
}

func runNotifications(ctx context.Context, c *cli, args []string) error {
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.app.Notifications.Sync(ctx, nil); err != nil {
		return err
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		printNotifications(c.out, c.app.Store.Snapshot().Notifications)
		return nil
	case "read":
		if len(args) != 1 {
			return usageError{"read needs an id"}
		}
		if err := c.app.Notifications.MarkReadRemote(ctx, models.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Marked %s as read. %d unread.\n", args[0], c.app.Notifications.UnreadCount())
		return nil
	case "read-all":
		snap := c.app.Store.Snapshot().Notifications
		for _, n := range snap.Notifications {
			if n.Read {
				continue
			}
			if err := c.app.Notifications.MarkReadRemote(ctx, n.ID); err != nil {
				return err
			}
		}
		fmt.Fprintln(c.out, "All notifications marked as read.")
		return nil
	}
	return usageError{fmt.Sprintf("unknown notifications command %q", sub)}
}

func runServe(ctx context.Context, c *cli, args []string) error {
	if c.app.Status == nil {
		return usageError{"set BANK_STATUS_ADDR to serve the status endpoints"}
	}
	fmt.Fprintf(c.out, "Serving status on %s (session %s). Press Ctrl+C to stop.\n",
		c.app.Config.StatusAddr, c.app.Store.Snapshot().Session.Status)

	updates, unsubscribe := c.app.Store.Subscribe()
	defer unsubscribe()

	var last state.SessionStatus
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "Stopping.")
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.Session.Status != last {
				last = snap.Session.Status
				fmt.Fprintf(c.out, "%s session %s\n", time.Now().Format(time.TimeOnly), last)
			}
		}
	}
}

func printBalance(w io.Writer, account state.AccountState) {
	if account.Account == nil {
		fmt.Fprintln(w, "Balance not available.")
		return
	}
	fmt.Fprintf(w, "Account %s (%s)\n", account.Account.Number, account.Account.Type)
	fmt.Fprintf(w, "Balance:   $%.2f\n", account.Account.Balance)
	if account.PendingDebit > 0 {
		fmt.Fprintf(w, "Available: $%.2f\n", account.Available())
	}
}

func printRecipients(w io.Writer, list []models.Recipient) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No recipients saved.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACCOUNT\tTYPE\tBANK")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.AccountNumber, r.AccountType, r.Bank)
	}
	tw.Flush()
}

func printNotifications(w io.Writer, section state.NotificationState) {
	if len(section.Notifications) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	fmt.Fprintf(w, "%d unread\n", section.UnreadCount())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tDATE\tTYPE\tTITLE\tMESSAGE")
	for _, n := range section.Notifications {
		mark := "*"
		if n.Read {
			mark = " "
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, n.ID, formatTime(n.Timestamp), n.Type, n.Title, n.Message)
	}
	tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
