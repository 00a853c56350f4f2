package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/services"
	"github.com/dmitrijs2005/possync/internal/client/syncer"
	"github.com/dmitrijs2005/possync/internal/logging"
)

// Syncer is the part of the sync orchestrator the prompt drives.
type Syncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
	Status(ctx context.Context) (clientmodels.SyncStatus, error)
	History(ctx context.Context, limit int) ([]clientmodels.SyncLogEntry, error)
	ClearAllLocalData(ctx context.Context) error
}

// Options wires an App. In and Out default to the process stdio.
type Options struct {
	Auth      *services.AuthService
	Products  *services.Products
	Customers *services.Customers
	Sales     *services.Sales
	Syncer    Syncer
	// Online reports the connectivity hint shown in the prompt.
	Online       func() bool
	HistoryLimit int
	Logger       logging.Logger
	In           io.Reader
	Out          io.Writer
}

type App struct {
	auth      *services.AuthService
	products  *services.Products
	customers *services.Customers
	sales     *services.Sales
	syncer    Syncer
	online    func() bool
	histLimit int
	logger    logging.Logger
	reader    *bufio.Reader
	out       io.Writer
}

func NewApp(o Options) *App {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Online == nil {
		o.Online = func() bool { return true }
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 20
	}
	return &App{
		auth:      o.Auth,
		products:  o.Products,
		customers: o.Customers,
		sales:     o.Sales,
		syncer:    o.Syncer,
		online:    o.Online,
		histLimit: o.HistoryLimit,
		logger:    o.Logger,
		reader:    bufio.NewReader(o.In),
		out:       o.Out,
	}
}

// Run blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	a.println("Welcome to the POS terminal (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.auth.OwnerID() != ""
}

func (a *App) getStatus() string {
	parts := make([]string, 0, 3)
	if u := a.auth.Username(); u != "" {
		parts = append(parts, u)
	}
	if a.online() {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	if a.auth.IsOfflineSession() {
		parts = append(parts, "local session")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
