package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/icodeforyou/ews-go/config"
	"github.com/icodeforyou/ews-go/convert"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
	"github.com/icodeforyou/ews-go/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	apiKey     string
	endpoint   string

	cnfg   *config.AppConfig
	logger *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ews",
		Short:         "Query dynamic electricity prices from EWS",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "console log level")
	flags.StringVar(&opts.apiKey, "api-key", "", "api key, overrides the config")
	flags.StringVar(&opts.endpoint, "endpoint", "", "price endpoint, overrides the config")

	root.AddCommand(newAuthCmd(opts), newPricesCmd(opts), newNowCmd(opts))
	return root
}

func (o *rootOptions) setup(stderr io.Writer) error {
	o.logger = slog.New(logging.NewConsoleHandler(stderr, logging.ParseLevel(o.logLevel)))
	slog.SetDefault(o.logger)

	cnfg, err := config.Load(o.configPath)
	if err != nil {
		return o.report(fmt.Errorf("failed to load config: %w", err))
	}
	if o.apiKey != "" {
		cnfg.Ews.ApiKey = o.apiKey
	}
	if o.endpoint != "" {
		cnfg.Ews.Endpoint = &o.endpoint
	}
	if cnfg.Ews.ApiKey == "" {
		return o.report(errors.New("no api key, use --api-key or set EWS_API_KEY"))
	}
	if err := hours.SetDisplayTimezone(cnfg.Display.GetTimezone()); err != nil {
		return o.report(err)
	}
	o.cnfg = cnfg
	return nil
}

func (o *rootOptions) clientOptions() []ews.Option {
	return append(o.cnfg.ClientOptions(), ews.WithLogger(o.logger.With("module", "ews")))
}

func (o *rootOptions) report(err error) error {
	if err != nil {
		o.logger.Error("command failed", slog.Any("error", err))
	}
	return err
}

func newAuthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check that the api key is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ews.Authenticate(cmd.Context(), opts.cnfg.Ews.ApiKey, opts.clientOptions()...) {
				return opts.report(ews.ErrInvalidCredentials)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "api key accepted")
			return nil
		},
	}
}

// fetch returns every known price. A non-2xx answer leaves the client
// without prices, in which case the recorded failure is returned.
func (o *rootOptions) fetch(cmd *cobra.Command) (*ews.Client, []ews.PricePoint, error) {
	client := ews.New(o.cnfg.Ews.ApiKey, o.clientOptions()...)
	prices, err := client.Get(cmd.Context())
	if err != nil {
		client.Close()
		return nil, nil, o.report(err)
	}
	if len(prices) == 0 {
		client.Close()
		if failure := client.LastFailure(); failure != nil {
			return nil, nil, o.report(failure)
		}
		return nil, nil, o.report(errors.New("no prices available"))
	}
	return client, prices, nil
}

func newPricesCmd(opts *rootOptions) *cobra.Command {
	var date string
	var asJson bool

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "List the prices of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date, hours.Today(hours.DisplayLocation()))
			if err != nil {
				return opts.report(err)
			}

			client, prices, err := opts.fetch(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			matched := ews.MatchDate(prices, day)
			if asJson {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(matched)
			}

			if len(matched) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no prices for %s\n", day)
				return nil
			}

			unit := client.Meta().ValueOrDefault(ews.PriceMetadata{}).Unit
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(tw, "starts at\tdynamic\tfix\ttotal\t\n")
			for _, p := range matched {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t\n",
					hours.FormatTimeInDisplayTimezone(p.StartsAt),
					convert.TwoDecimals(p.DynamicPrice),
					convert.TwoDecimals(p.StaticPrice),
					convert.TwoDecimals(p.TotalPrice))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if unit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "prices in %s\n", unit)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "day to list, YYYY-MM-DD, today or tomorrow")
	cmd.Flags().BoolVar(&asJson, "json", false, "print prices as json")
	return cmd
}

// parseDay resolves --date relative to today.
func parseDay(value string, today hours.Date) (hours.Date, error) {
	switch value {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	}
	return hours.ParseDate(value)
}

func newNowCmd(opts *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Show the total price in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return opts.report(fmt.Errorf("invalid --at: %w", err))
				}
				t = parsed
			}

			client, prices, err := opts.fetch(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			price := ews.GetPriceNow(prices, t)
			if !price.IsValid() {
				return opts.report(fmt.Errorf("no price known for %s", hours.FormatTimeInDisplayTimezone(t)))
			}

			unit := client.Meta().ValueOrDefault(ews.PriceMetadata{}).Unit
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f %s\n", convert.TwoDecimals(price.Value()), unit)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "point in time, RFC3339 (default now)")
	return cmd
}
