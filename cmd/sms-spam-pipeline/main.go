package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/sms-spam-pipeline/internal/core"
	"github.com/mikey/sms-spam-pipeline/internal/di"
	"github.com/mikey/sms-spam-pipeline/internal/ports"
)

// demoMessages are scored by the root command once the model is trained
var demoMessages = []string{
	"Michal, h2oworld party tonight in MV?",
	"We tried to contact you re your reply to our offer of a Video Handset? 750 anytime any networks mins? UNLIMITED TEXT?",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &di.CLIFlags{}

	rootCmd := &cobra.Command{
		Use:       "sms-spam-pipeline [gbm|dl|automl]",
		Short:     "Train an SMS spam pipeline and classify messages",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"gbm", "dl", "automl"},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			flags.ThresholdSet = cmd.Flags().Changed("threshold")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Algorithm = algorithmArg(args)
			return invoke(cmd.Context(), flags, func(d *core.Detector) error {
				for _, text := range demoMessages {
					spam, err := d.IsSpam(cmd.Context(), text)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%q is a spam: %t\n", text, spam)
				}
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	pf.StringVar(&flags.DataPath, "data", "", "Path to the tab separated training data")
	pf.Float64Var(&flags.Threshold, "threshold", core.DefaultThreshold, "Spam probability threshold")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(newPredictCmd(flags), newServeCmd(flags))
	return rootCmd
}

func newPredictCmd(flags *di.CLIFlags) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "predict [gbm|dl|automl]",
		Short: "Classify --text, or each line read from stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Algorithm = algorithmArg(args)
			flags.FilterType = "cli"
			return invoke(cmd.Context(), flags, func(mf ports.MessageFilter) error {
				if text != "" {
					_, err := mf.ProcessMessage(cmd.Context(), &core.Message{Text: text})
					return err
				}
				return processLines(cmd.Context(), mf, cmd.InOrStdin())
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Message to classify")
	return cmd
}

func newServeCmd(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [gbm|dl|automl]",
		Short: "Train, then run the configured message filter until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Algorithm = algorithmArg(args)
			flags.Server = true
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return invoke(ctx, flags, func(mf ports.MessageFilter, logger *zap.Logger) error {
				if err := mf.Start(); err != nil {
					return fmt.Errorf("failed to start filter: %w", err)
				}

				<-ctx.Done()
				logger.Info("Shutting down...")

				if err := mf.Stop(); err != nil {
					logger.Error("Failed to stop filter", zap.Error(err))
				}
				logger.Info("Shutdown complete")
				return nil
			})
		},
	}
}

func algorithmArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// processLines classifies every non-blank line of r
func processLines(ctx context.Context, mf ports.MessageFilter, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := mf.ProcessMessage(ctx, &core.Message{Text: line}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// invoke builds the container, runs fn with its dependencies and then stops
// whatever the run built. fn may return an error.
func invoke(ctx context.Context, flags *di.CLIFlags, fn interface{}) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := di.BuildContainer(ctx, flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	var lc *di.Lifecycle
	if err := container.Invoke(func(l *di.Lifecycle) { lc = l }); err != nil {
		return err
	}
	defer func() {
		if stopErr := lc.Stop(); stopErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to release resources: %v\n", stopErr)
			if err == nil {
				err = stopErr
			}
		}
	}()

	return container.Invoke(fn)
}
