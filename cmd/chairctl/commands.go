package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/chairside-api/config"
	"github.com/jwalitptl/chairside-api/internal/app"
	"github.com/jwalitptl/chairside-api/internal/repository/postgres"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "chairctl",
		Short:        "Chairside scheduling service and admin tools",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(slotsCmd(opts))
	rootCmd.AddCommand(availabilityCmd(opts))
	rootCmd.AddCommand(doctorsCmd(opts))
	return rootCmd
}

// open loads config and wires the app. The caller closes it.
func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.Log))
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configFile)
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func slotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the booking grid for the current clinic hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			slots, err := a.Calendar.Slots(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range slots {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func availabilityCmd(opts *rootOptions) *cobra.Command {
	var (
		doctor   string
		date     string
		duration int
		exclude  string
	)
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show which start times are free for a doctor on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			excludeID := uuid.Nil
			if exclude != "" {
				id, err := uuid.Parse(exclude)
				if err != nil {
					return fmt.Errorf("invalid --exclude: %w", err)
				}
				excludeID = id
			}

			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = a.Calendar.Today().Format(timegrid.DateLayout)
			}
			slots, err := a.Bookings.Availability(cmd.Context(), doctor, date, duration, excludeID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tAVAILABLE\tREASON")
			for _, s := range slots {
				fmt.Fprintf(w, "%s\t%t\t%s\n", s.Time, s.Available, s.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&doctor, "doctor", "", "doctor name")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD, defaults to today")
	cmd.Flags().IntVar(&duration, "duration", 30, "booking length in minutes")
	cmd.Flags().StringVar(&exclude, "exclude", "", "lead ID to ignore, for reschedules")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func doctorsCmd(opts *rootOptions) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List the doctor roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			doctors, err := a.Clinic.ListDoctors(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOLOR\tACTIVE")
			for _, d := range doctors {
				fmt.Fprintf(w, "%s\t%s\t%t\n", d.Name, d.Color, d.Active)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active doctors")
	return cmd
}
