package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	Help()
	Message(ctx context.Context) error
	Contacts(ctx context.Context) error
	AddContact(ctx context.Context) error
	RemoveContact(ctx context.Context) error
	Users(ctx context.Context) error
	PublicKey(ctx context.Context) error
}

// runREPL reads a command per line and dispatches to methods on a.
// The loop exits on scanner EOF or when the user types "exit" or "quit".
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner, w io.Writer) {
	for {
		fmt.Fprint(w, "msg> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch parts[0] {
		case "help":
			a.Help()
		case "message", "m":
			err = a.Message(ctx)
		case "contacts":
			err = a.Contacts(ctx)
		case "add":
			err = a.AddContact(ctx)
		case "del":
			err = a.RemoveContact(ctx)
		case "users":
			err = a.Users(ctx)
		case "key":
			err = a.PublicKey(ctx)
		case "exit", "quit":
			return
		default:
			fmt.Fprintf(w, "Unknown command %q, type help for the list.\n", parts[0])
		}

		if err != nil {
			fmt.Fprintf(w, "Command failed: %v\n", err)
		}
	}
}
