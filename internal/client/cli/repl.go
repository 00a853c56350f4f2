package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/possync/internal/common"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ListProducts(ctx context.Context) error
	AddProduct(ctx context.Context) error
	FindProduct(ctx context.Context, barcode string) error
	AttachImage(ctx context.Context, productID, path string) error
	ListCustomers(ctx context.Context) error
	AddCustomer(ctx context.Context) error
	Checkout(ctx context.Context) error
	Delete(ctx context.Context, kind, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	History(ctx context.Context) error
}

// runREPL reads one command per line and dispatches it to a. Command errors
// are shown as short notifications and never end the loop. The loop exits on
// EOF, on "exit"/"quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("pos %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if err := dispatch(ctx, a, cmd, args); err != nil {
			printlnFn(common.UserMessage(err))
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn("Available commands: products, addproduct, find <barcode>, image <product-id> <file>, " +
				"customers, addcustomer, checkout, delete <product|customer|sale> <id>, sync, status, history, logout, exit")
		} else {
			printlnFn("Available commands: register, login, status, history, exit")
		}
		return nil
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "status":
		return a.Status(ctx)
	case "history":
		return a.History(ctx)
	}

	if !a.isLoggedIn() {
		printlnFn("Please log in first (type 'help' for commands)")
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "products", "p":
		return a.ListProducts(ctx)
	case "addproduct":
		return a.AddProduct(ctx)
	case "find":
		if len(args) != 1 {
			printlnFn("Usage: find <barcode>")
			return nil
		}
		return a.FindProduct(ctx, args[0])
	case "image":
		if len(args) != 2 {
			printlnFn("Usage: image <product-id> <file>")
			return nil
		}
		return a.AttachImage(ctx, args[0], args[1])
	case "customers", "c":
		return a.ListCustomers(ctx)
	case "addcustomer":
		return a.AddCustomer(ctx)
	case "checkout":
		return a.Checkout(ctx)
	case "delete":
		if len(args) != 2 {
			printlnFn("Usage: delete <product|customer|sale> <id>")
			return nil
		}
		return a.Delete(ctx, args[0], args[1])
	case "sync":
		return a.Sync(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}
