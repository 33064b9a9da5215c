package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/challengeties/rewards/internal/config"
	"github.com/challengeties/rewards/internal/migrate"
	"github.com/challengeties/rewards/internal/referral"
	"github.com/challengeties/rewards/internal/service"
	"github.com/challengeties/rewards/internal/session"
	"github.com/challengeties/rewards/internal/worker"
)

func newParseLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-link URL",
		Short: "Show the referral carried by a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, ok := referral.ParseLink(args[0])
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no referral")
				return nil
			}
			printJSON(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newCaptureLinkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "capture-link URL",
		Short: "Store the referrer of a link as pending (before sign-in)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, ok := referral.ParseLink(args[0])
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no referral")
				return nil
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.pending.Store(ctx, link.ReferrerID, link.Src, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pending referrer %s (%s)\n", link.ReferrerID, link.Src)
				return nil
			})
		},
	}
}

type loginResult struct {
	UserID    string                  `json:"userId"`
	Outcome   string                  `json:"outcome"`
	Reconcile service.ReconcileReport `json:"reconcile"`
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var user, token, url string
	var create bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the sign-in hook: attribute a pending referral and settle rewards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				uid, err := a.userID(user, token)
				if err != nil {
					return err
				}
				if create || a.cfg.Store == config.StoreMemory {
					if err := a.profiles.Create(ctx, uid); err != nil {
						return fmt.Errorf("create profile: %w", err)
					}
				}
				outcome, rep, err := a.rewards.HandleSignIn(session.WithUserID(ctx, uid), url)
				if err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), loginResult{UserID: uid, Outcome: outcome.String(), Reconcile: rep})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (trusted)")
	cmd.Flags().StringVar(&token, "token", "", "signed ID token")
	cmd.Flags().StringVar(&url, "url", "", "link the app was opened with")
	cmd.Flags().BoolVar(&create, "create-profile", false, "create the profile first (new sign-up)")
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed ID token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTKey == "" {
				return errors.New("auth.jwt_key / REWARDS_JWT_KEY is not set")
			}
			tok, err := session.Issue([]byte(cfg.Auth.JWTKey), cfg.Auth.Issuer, user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p, err := a.profiles.Get(ctx, user)
				if err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAchievementCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{Use: "achievement", Short: "Stage and claim achievements"}

	var user, id string
	var trophies int64
	var double bool

	add := &cobra.Command{
		Use:   "add",
		Short: "Stage an unlocked achievement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ok, err := a.ledger.AddAchievement(ctx, user, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "staged=%t\n", ok)
				return nil
			})
		},
	}
	claim := &cobra.Command{
		Use:   "claim",
		Short: "Claim a staged achievement, optionally doubled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				s := service.NewClaimSession(a.ledger, a.log)
				if err := s.Stage(id, trophies); err != nil {
					return err
				}
				if double {
					if err := s.Double(); err != nil {
						return err
					}
				}
				got, err := s.Claim(ctx, user)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credited=%d\n", got)
				return nil
			})
		},
	}
	for _, c := range []*cobra.Command{add, claim} {
		c.Flags().StringVar(&user, "user", "", "user id")
		c.Flags().StringVar(&id, "id", "", "achievement id")
		_ = c.MarkFlagRequired("user")
		_ = c.MarkFlagRequired("id")
	}
	claim.Flags().Int64Var(&trophies, "trophies", 0, "base reward")
	claim.Flags().BoolVar(&double, "double", false, "double the reward")
	root.AddCommand(add, claim)
	return root
}

func newMilestoneCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{Use: "milestone", Short: "Referral milestone rewards"}
	var user string
	var threshold int
	claim := &cobra.Command{
		Use:   "claim",
		Short: "Claim the reward of a reached referral milestone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				got, err := a.claims.Claim(ctx, user, threshold)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credited=%d\n", got)
				return nil
			})
		},
	}
	claim.Flags().StringVar(&user, "user", "", "user id")
	claim.Flags().IntVar(&threshold, "threshold", 0, "milestone threshold (5, 10, 25)")
	_ = claim.MarkFlagRequired("user")
	_ = claim.MarkFlagRequired("threshold")
	root.AddCommand(claim)
	return root
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle referrer rewards for one user, or sweep all referrers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if user != "" {
					rep, err := a.reconciler.Reconcile(ctx, user)
					if err != nil {
						return err
					}
					printJSON(cmd.OutOrStdout(), rep)
					return nil
				}
				w, err := worker.New(a.profiles, a.reconciler, a.cfg.ReconcileEvery(), a.log)
				if err != nil {
					return err
				}
				n, err := w.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reconciled=%d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "single user id")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn / REWARDS_POSTGRES_DSN is not set")
			}
			if !status {
				if err := migrate.Up(cmd.Context(), cfg.Postgres.DSN); err != nil {
					return err
				}
			}
			v, err := migrate.Status(cmd.Context(), cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			latest, err := migrate.Latest()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d\n", v, latest)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "only print the current version")
	return cmd
}
