package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/handler/http/auth"
	"reel-relay/internal/usecase/ingest"
)

const minSecretLength = 32

func newRootCmd(env cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Operate the reel relay",
		Long:          `relayctl submits reel links and runs the operator actions (stats, target chat, bans, failures, reconciliation) against the relay database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newIngestCmd(env),
		newStatsCmd(env),
		newSetTargetCmd(env),
		newBanCmd(env),
		newUnbanCmd(env),
		newFailuresCmd(env),
		newMarkDeadCmd(env),
		newReconcileCmd(env),
		newTokenCmd(env),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relayctl %s\n", version)
		},
	}
}

// withDeps opens the database-backed services for the duration of fn.
func withDeps(cmd *cobra.Command, env cliEnv, fn func(ctx context.Context, d *deps) error) error {
	ctx := cmd.Context()
	d, err := env.open(ctx)
	if err != nil {
		return err
	}
	if d.Close != nil {
		defer d.Close()
	}
	return fn(ctx, d)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newIngestCmd(env cliEnv) *cobra.Command {
	var (
		chatID      string
		messageID   int64
		submitterID string
	)
	cmd := &cobra.Command{
		Use:   "ingest <reel-url>",
		Short: "Submit a reel link and enqueue its fetch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := ingest.Meta{Source: entity.SourceTypeLink}
			if chatID != "" {
				meta.ChatID = &chatID
			}
			if cmd.Flags().Changed("message-id") {
				meta.MessageID = &messageID
			}
			if submitterID != "" {
				meta.SubmitterID = &submitterID
			}
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				res, err := d.Ingest.Submit(ctx, args[0], meta)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"requestId":     res.RequestID,
					"alreadyExists": res.AlreadyExists,
				})
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "chat to reply to")
	cmd.Flags().Int64Var(&messageID, "message-id", 0, "message to reply to")
	cmd.Flags().StringVar(&submitterID, "submitter-id", "", "submitting user, checked against bans")
	return cmd
}

func newStatsCmd(env cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show 24h request counts and the outbound queue size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				st, err := d.Admin.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newSetTargetCmd(env cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "set-target <chat-id>",
		Short: "Set the Telegram chat that receives webhook reels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				snap, err := d.Admin.SetTargetChat(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "target chat set to %s\n", snap.TargetChatID)
				return nil
			})
		},
	}
}

func newBanCmd(env cliEnv) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "ban <user-id>",
		Short: "Reject further submissions from a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				if err := d.Admin.Ban(ctx, args[0], env.operator, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "banned %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the user is banned")
	return cmd
}

func newUnbanCmd(env cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "unban <user-id>",
		Short: "Lift a ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				if err := d.Admin.Unban(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unbanned %s\n", args[0])
				return nil
			})
		},
	}
}

func newFailuresCmd(env cliEnv) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List the most recent processing failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				list, err := d.Admin.RecentFailures(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "no failures recorded")
					return nil
				}
				for _, f := range list {
					fmt.Fprintf(out, "%s\t%s\t%s\tretries=%d\t%s\n",
						f.CreatedAt.UTC().Format(time.RFC3339), f.ID, f.JobName, f.RetryCount, f.ErrorReason)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of failures to show (max 100)")
	return cmd
}

func newMarkDeadCmd(env cliEnv) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "mark-dead <outbound-post-id>",
		Short: "Give up on an outbound post that keeps failing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				if err := d.Admin.MarkDead(ctx, args[0], reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "outbound post %s marked dead\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason stored on the post")
	return cmd
}

func newReconcileCmd(env cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-enqueue requests stuck in NEW, FETCHING or READY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, env, func(ctx context.Context, d *deps) error {
				res, err := d.Reconciler.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newTokenCmd(env cliEnv) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, defaultTTL, err := env.tokenSettings()
			if err != nil {
				return err
			}
			if len(secret) < minSecretLength {
				return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
			}
			if strings.TrimSpace(subject) == "" {
				return errors.New("--subject is required")
			}
			if ttl <= 0 {
				ttl = defaultTTL
			}

			tok, err := auth.Issuer{Secret: secret, TTL: ttl}.Issue(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is for")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "admin, viewer or submitter")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default ADMIN_TOKEN_TTL)")
	return cmd
}
