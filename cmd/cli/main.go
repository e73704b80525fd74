// Command dx is the command-line front-end of doc-extract. It signs in against
// the authentication service, keeps the session in a local store and answers
// role and permission questions for scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ieazie/doc-extract/internal/config"
	"github.com/ieazie/doc-extract/internal/session"
	"github.com/ieazie/doc-extract/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errDenied is returned by can when at least one permission is not granted.
var errDenied = errors.New("permission denied")

// app holds what a single invocation builds lazily: config, logger, store and manager.
type app struct {
	v       *viper.Viper
	cfgFile string
	output  string

	cfg     *config.Config
	log     *zap.Logger
	kv      storage.KV
	closeKV func() error
	mgr     *session.Manager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{v: config.New()}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDenied):
		return 3
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dx",
		Short:         "doc-extract session client",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.doc-extract/config.yaml)")
	pf.StringVarP(&a.output, "output", "o", "text", "output format: text, json")
	pf.String("api-url", "", "authentication service base URL")
	pf.String("store", "", "session store: file, memory, redis, postgres")
	pf.String("store-dir", "", "directory of the file store")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	for key, flag := range map[string]string{
		"api.base-url": "api-url",
		"store.kind":   "store",
		"store.dir":    "store-dir",
		"log.level":    "log-level",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.switchTenantCmd(),
		a.refreshTenantCmd(),
		a.canCmd(),
		a.permissionsCmd(),
		rolesCmd(&a.output),
	)
	return root
}
