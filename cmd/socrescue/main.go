// Command socrescue recovers bricked embedded application processors over
// a serial link: it waits for the ROM's boot-recovery handshake, loads a
// flash-writer agent, and programs firmware images per a YAML profile.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openbrick/socrescue/config"
	"github.com/openbrick/socrescue/framer"
	"github.com/openbrick/socrescue/logging"
	"github.com/openbrick/socrescue/recovery"
	"github.com/openbrick/socrescue/soc"
)

var (
	flagProfile          string
	flagPort             string
	flagNoSpeedUp        bool
	flagLoadOnly         bool
	flagVerbose          bool
	flagHandshakeTimeout time.Duration
	flagEraseTimeout     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "socrescue",
		Short:         "Recover bricked SoCs over their serial boot-recovery mode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a recovery session from a YAML profile",
		RunE:  runRecovery,
	}
	runCmd.Flags().StringVarP(&flagProfile, "profile", "c", "", "recovery profile YAML file (required)")
	runCmd.Flags().StringVar(&flagPort, "port", "", "override the profile's serial port")
	runCmd.Flags().BoolVar(&flagNoSpeedUp, "no-speed-up", false, "stay at the initial baud rate")
	runCmd.Flags().BoolVar(&flagLoadOnly, "load-only", false, "load the flash writer but skip flashing")
	runCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	runCmd.Flags().DurationVar(&flagHandshakeTimeout, "handshake-timeout", 30*time.Second, "boot signal wait window")
	runCmd.Flags().DurationVar(&flagEraseTimeout, "erase-timeout", 120*time.Second, "per-image completion wait")
	_ = runCmd.MarkFlagRequired("profile")

	socsCmd := &cobra.Command{
		Use:   "socs",
		Short: "List supported device families",
		Run: func(cmd *cobra.Command, args []string) {
			for _, family := range soc.Families() {
				fmt.Println(family)
			}
		},
	}

	root.AddCommand(runCmd, socsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runRecovery(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
	log := logging.NewZerolog(zl)

	profile, err := config.Load(flagProfile)
	if err != nil {
		return err
	}
	if flagPort != "" {
		profile.Target.Endpoint = flagPort
	}

	var lastPct int = -1
	progress := func(p framer.Progress) {
		if p.TotalBytes == 0 {
			return
		}
		pct := p.BytesSent * 100 / p.TotalBytes
		if pct/10 != lastPct/10 {
			lastPct = pct
			zl.Info().Int("percent", pct).Int("bytes", p.BytesSent).Int("total", p.TotalBytes).Msg("transfer progress")
		}
	}

	session := recovery.New(
		recovery.WithLogger(log),
		recovery.WithProgress(progress),
		recovery.WithSpeedUp(profile.SpeedUp && !flagNoSpeedUp),
		recovery.WithHandshakeTimeout(flagHandshakeTimeout),
		recovery.WithEraseTimeout(flagEraseTimeout),
	)

	images := profile.Images
	if flagLoadOnly {
		images = nil
	}

	report, runErr := session.Run(context.Background(), profile.Target, profile.Stage2, images)
	printReport(report)
	return runErr
}

func printReport(r *recovery.Report) {
	fmt.Printf("\nfinal state: %s (%.1fs at %d bps", r.FinalState, r.Elapsed.Seconds(), r.Baud)
	if r.SpeedUpApplied {
		fmt.Print(", speed-up applied")
	}
	fmt.Println(")")
	for _, st := range r.Stages {
		fmt.Printf("  %-22s %8.2fs\n", st.Stage, st.Elapsed.Seconds())
	}
	if len(r.Images) > 0 {
		fmt.Println("images:")
		for _, img := range r.Images {
			status := "ok"
			if !img.OK {
				status = "FAILED: " + img.Reason
			}
			fmt.Printf("  %-20s %8.2fs  %s\n", img.Name, img.Elapsed.Seconds(), status)
		}
	}
}
