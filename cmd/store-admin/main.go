package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/xtreeshop/config"
	"github.com/BearBump/xtreeshop/internal/logger"
	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/BearBump/xtreeshop/internal/services/auth"
	"github.com/BearBump/xtreeshop/internal/storage/pgstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

type superadminCreator interface {
	EnsureSuperadmin(ctx context.Context, in auth.SuperadminInput) (*models.User, bool, error)
}

// adminDeps opens the store for one command run.
type adminDeps struct {
	open func(configPath string) (migrator, superadminCreator, func(), error)
	log  *zap.Logger
}

func defaultAdminDeps() adminDeps {
	return adminDeps{
		open: func(configPath string) (migrator, superadminCreator, func(), error) {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return nil, nil, nil, err
			}
			st, err := pgstore.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, nil, err
			}
			// no rate limiter: the CLI never logs in
			return st, auth.New(st, nil, 24*time.Hour, 0), st.Close, nil
		},
		log: logger.Must("development", "info"),
	}
}

func newRootCmd(deps adminDeps) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "store-admin",
		Short:         "Maintenance commands for the shop database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("configPath"), "path to config yaml (env configPath)")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema and seed order statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, _, closeFn, err := deps.open(configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := m.Migrate(cmd.Context()); err != nil {
				return err
			}
			deps.log.Info("schema is up to date")
			return nil
		},
	}

	var in auth.SuperadminInput
	superCmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a superadmin or promote the account with the same email/username",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, creator, closeFn, err := deps.open(configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			u, created, err := creator.EnsureSuperadmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			deps.log.Info("superadmin "+verb, zap.Uint64("id", u.ID), zap.String("email", u.Email))
			fmt.Fprintf(cmd.OutOrStdout(), "superadmin %s: id=%d email=%s\n", verb, u.ID, u.Email)
			return nil
		},
	}
	f := superCmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Username, "username", "", "account username")
	f.StringVar(&in.Password, "password", "", "account password")
	f.StringVar(&in.FirstName, "first-name", "Super", "first name")
	f.StringVar(&in.LastName, "last-name", "Admin", "last name")
	_ = superCmd.MarkFlagRequired("email")
	_ = superCmd.MarkFlagRequired("username")
	_ = superCmd.MarkFlagRequired("password")

	root.AddCommand(migrateCmd, superCmd)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps := defaultAdminDeps()
	defer func() { _ = deps.log.Sync() }()

	if err := newRootCmd(deps).ExecuteContext(ctx); err != nil {
		deps.log.Error("store-admin failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}
