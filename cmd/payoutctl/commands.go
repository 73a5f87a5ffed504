package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GlebRadaev/partnerpay/internal/app"
	"github.com/GlebRadaev/partnerpay/internal/config"
	"github.com/GlebRadaev/partnerpay/internal/domain"
	"github.com/GlebRadaev/partnerpay/internal/dto"
	"github.com/GlebRadaev/partnerpay/internal/service/payoutservice"
	"github.com/GlebRadaev/partnerpay/pkg/auth"
	"github.com/GlebRadaev/partnerpay/pkg/logger"
)

// Engine is the part of the settlement engine an operator drives by hand.
type Engine interface {
	ApprovePayout(ctx context.Context, id string) (*payoutservice.TransitionResult, error)
	CompletePayout(ctx context.Context, id, externalTransactionID string) (*payoutservice.TransitionResult, error)
	FailPayout(ctx context.Context, id, reason string) (*payoutservice.TransitionResult, error)
	CancelPayout(ctx context.Context, id, reason string) (*payoutservice.TransitionResult, error)
	GetPartnerPayoutStats(ctx context.Context, partnerID string) (*domain.PayoutStats, error)
}

type cli struct {
	cfg     *config.Config
	out     io.Writer
	open    func(ctx context.Context, cfg *config.Config) (Engine, func(), error)
	migrate func(ctx context.Context, cfg *config.Config) error
	now     func() time.Time
}

func defaultCLI() *cli {
	return &cli{
		cfg: config.FromEnv(),
		out: os.Stdout,
		open: func(ctx context.Context, cfg *config.Config) (Engine, func(), error) {
			core, err := app.Build(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return core.Services.Engine, core.Close, nil
		},
		migrate: app.Migrate,
		now:     time.Now,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "payoutctl",
		Short:         "Operate partner payouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.InitLogger(c.cfg)
		},
	}

	root.AddCommand(
		c.approveCmd(),
		c.completeCmd(),
		c.failCmd(),
		c.cancelCmd(),
		c.statsCmd(),
		c.migrateCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e Engine) (any, error)) error {
	ctx := cmd.Context()
	e, closeFn, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := fn(ctx, e)
	if err != nil {
		return fmt.Errorf("%s: %w", payoutservice.ErrorCode(err), err)
	}
	return c.print(out)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func transition(res *payoutservice.TransitionResult, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return dto.NewTransitionResultDTO(res), nil
}

func (c *cli) approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <payout-id>",
		Short: "Move a pending manual or card payout to PROCESSING",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e Engine) (any, error) {
				return transition(e.ApprovePayout(ctx, args[0]))
			})
		},
	}
}

func (c *cli) completeCmd() *cobra.Command {
	var externalID string
	cmd := &cobra.Command{
		Use:   "complete <payout-id>",
		Short: "Mark a processing payout as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e Engine) (any, error) {
				return transition(e.CompletePayout(ctx, args[0], externalID))
			})
		},
	}
	cmd.Flags().StringVarP(&externalID, "external-id", "e", "", "external transaction id of the transfer")
	_ = cmd.MarkFlagRequired("external-id")
	return cmd
}

func (c *cli) failCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <payout-id>",
		Short: "Mark an open payout as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e Engine) (any, error) {
				return transition(e.FailPayout(ctx, args[0], reason))
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "failure reason shown to the partner")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <payout-id>",
		Short: "Cancel an open payout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e Engine) (any, error) {
				return transition(e.CancelPayout(ctx, args[0], reason))
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "cancellation reason")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <partner-id>",
		Short: "Show payout totals for a partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e Engine) (any, error) {
				stats, err := e.GetPartnerPayoutStats(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return dto.NewPayoutStatsDTO(stats), nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.migrate(cmd.Context(), c.cfg); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "migrations applied")
			return nil
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		partnerID string
		operator  bool
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a partner or an operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := auth.RolePartner
			if operator {
				role = auth.RoleOperator
			} else if partnerID == "" {
				return fmt.Errorf("either --partner or --operator is required")
			}

			token, err := auth.NewJWTService(c.cfg.JWTSecret).GenerateJWT(partnerID, role, c.now().Add(ttl))
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&partnerID, "partner", "p", "", "partner id the token acts for")
	cmd.Flags().BoolVar(&operator, "operator", false, "issue an operator token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
