package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gomessenger/internal/client/config"
	"github.com/dmitrijs2005/gomessenger/internal/client/transport"
	"github.com/dmitrijs2005/gomessenger/internal/common"
	"github.com/dmitrijs2005/gomessenger/internal/cryptox"
	"github.com/dmitrijs2005/gomessenger/internal/filex"
	"github.com/dmitrijs2005/gomessenger/internal/logging"
	"github.com/dmitrijs2005/gomessenger/internal/proto"
)

// session is the slice of transport.Client the CLI depends on.
// Tests provide a lightweight stub.
type session interface {
	Name() string
	SendMessage(to, text string) error
	Contacts() ([]string, error)
	AddContact(contact string) error
	RemoveContact(contact string) error
	Users() ([]string, error)
	PublicKey(user string) (string, error)
	Incoming() <-chan proto.Envelope
	RefreshEvents() <-chan struct{}
	Lost() <-chan struct{}
	Close() error
}

type App struct {
	config *config.Config
	logger logging.Logger
	sess   session
	b      proto.Builder
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		logger: logging.NewDefault().With("module", "cli"),
		b:      proto.NewBuilder(proto.DefaultKeys()),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// connect prompts for credentials as needed and authenticates against the
// server. Name-taken and wrong-password rejections are reported to the user
// without retry; the caller decides whether to attempt again.
func (a *App) connect(ctx context.Context) error {
	name := a.config.Username
	if name == "" {
		var err error
		name, err = GetSimpleText(a.reader, "Account name", a.out)
		if err != nil {
			return err
		}
	}
	if name == "" {
		return errors.New("account name must not be empty")
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	keyDir, err := filex.EnsureSubdDir("keys")
	if err != nil {
		return err
	}
	_, pubkey, err := cryptox.LoadOrCreateKey(keyDir, name)
	if err != nil {
		return err
	}

	sess, err := transport.Dial(ctx, a.config, name, password, pubkey, a.logger)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrServerUnreachable):
			fmt.Fprintln(a.out, "Server is unreachable, try again later.")
		case errors.Is(err, common.ErrNameTaken):
			fmt.Fprintln(a.out, "This name is already connected from elsewhere.")
		case errors.Is(err, common.ErrUserNotRegistered):
			fmt.Fprintln(a.out, "Unknown account name.")
		case errors.Is(err, common.ErrWrongPassword):
			fmt.Fprintln(a.out, "Wrong password.")
		}
		return err
	}

	a.sess = sess
	fmt.Fprintf(a.out, "Connected as %s.\n", sess.Name())
	return nil
}

// watchEvents prints server-initiated traffic: incoming chat messages,
// refreshed user lists, and the loss of the connection.
func (a *App) watchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.sess.Lost():
			fmt.Fprintln(a.out, "Connection to the server was lost.")
			return
		case env := <-a.sess.Incoming():
			fmt.Fprintf(a.out, "\n%s: %s\n", a.b.From(env), a.b.MessageText(env))
		case <-a.sess.RefreshEvents():
			if users, err := a.sess.Users(); err == nil {
				fmt.Fprintf(a.out, "\nKnown users now: %s\n", strings.Join(users, ", "))
			}
		}
	}
}

func (a *App) Help() {
	fmt.Fprintln(a.out, "Available commands: help, message, contacts, add, del, users, key, exit")
}

func (a *App) Message(ctx context.Context) error {
	to, err := GetSimpleText(a.reader, "Recipient", a.out)
	if err != nil {
		return err
	}
	text, err := GetSimpleText(a.reader, "Message", a.out)
	if err != nil {
		return err
	}
	if err := a.sess.SendMessage(to, text); err != nil {
		if errors.Is(err, common.ErrRecipientUnavailable) {
			fmt.Fprintf(a.out, "%s is not online.\n", to)
			return nil
		}
		return err
	}
	return nil
}

func (a *App) Contacts(ctx context.Context) error {
	list, err := a.sess.Contacts()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "Contact list is empty.")
		return nil
	}
	fmt.Fprintf(a.out, "Contacts: %s\n", strings.Join(list, ", "))
	return nil
}

func (a *App) AddContact(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Contact to add", a.out)
	if err != nil {
		return err
	}
	if err := a.sess.AddContact(name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s added to contacts.\n", name)
	return nil
}

func (a *App) RemoveContact(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Contact to remove", a.out)
	if err != nil {
		return err
	}
	if err := a.sess.RemoveContact(name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s removed from contacts.\n", name)
	return nil
}

func (a *App) Users(ctx context.Context) error {
	list, err := a.sess.Users()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Known users: %s\n", strings.Join(list, ", "))
	return nil
}

func (a *App) PublicKey(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Whose key", a.out)
	if err != nil {
		return err
	}
	key, err := a.sess.PublicKey(name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintf(a.out, "%s has no public key on record.\n", name)
			return nil
		}
		return err
	}
	fmt.Fprintf(a.out, "Public key of %s:\n%s\n", name, key)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.watchEvents(ctx)

	// initial view of the world, as of login
	if err := a.Users(ctx); err != nil {
		return err
	}
	if err := a.Contacts(ctx); err != nil {
		return err
	}

	a.Help()
	runREPL(ctx, a, bufio.NewScanner(os.Stdin), a.out)
	return nil
}
