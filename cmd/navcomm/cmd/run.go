package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/config"
	"github.com/roffe/navcomm/pkg/recorder"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	yellow = color.New(color.FgHiYellow).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	cyan   = color.New(color.FgCyan).SprintfFunc()
	blue   = color.New(color.FgHiBlue).SprintfFunc()
)

var busColor = map[navcomm.Bus]func(string, ...interface{}) string{
	navcomm.BusNMEA0183: green,
	navcomm.BusNMEA2000: cyan,
	navcomm.BusSignalK:  blue,
}

const (
	flagRecord = "record"
	flagBus    = "bus"
	flagQuiet  = "quiet"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "open all enabled connections and print received messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		buses, err := busFilter(cmd)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetBool(flagQuiet)

		core, drivers, err := startCore(ctx, cfg, log, "")
		if err != nil {
			return err
		}
		if len(drivers) == 0 {
			log.Warnf("no enabled connections in %s", path)
		}

		var rec *recorder.Recorder
		if dbPath, _ := cmd.Flags().GetString(flagRecord); dbPath != "" {
			rec, err = recorder.Open(dbPath, log)
			if err != nil {
				core.Close()
				return err
			}
			if err := rec.Attach(core.Bus); err != nil {
				rec.Close()
				core.Close()
				return err
			}
			log.Infof("recording to %s", dbPath)
		}

		if !quiet {
			for _, b := range buses {
				if _, err := core.Bus.Subscribe(navcomm.SubscriptionKey{Bus: b}, printMessage); err != nil {
					return err
				}
			}
		}

		<-ctx.Done()

		if rec != nil {
			if err := rec.Close(); err != nil {
				log.WithError(err).Error("close recorder")
			}
		}
		for _, d := range core.Registry.Drivers() {
			fmt.Printf("%s %s\n", yellow(d.Params().Identity()), d.Stats())
		}
		if err := core.Close(); err != nil && !errors.Is(err, navcomm.ErrClosed) {
			return err
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.String(flagRecord, "", "record messages to sqlite database")
	f.StringSlice(flagBus, nil, "only print these buses (nmea0183,nmea2000,signalk)")
	f.BoolP(flagQuiet, "q", false, "do not print messages")
	rootCmd.AddCommand(runCmd)
}

func busFilter(cmd *cobra.Command) ([]navcomm.Bus, error) {
	names, err := cmd.Flags().GetStringSlice(flagBus)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return navcomm.Buses(), nil
	}
	var out []navcomm.Bus
	for _, n := range names {
		b, err := navcomm.ParseBus(n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func printMessage(msg *navcomm.NavMsg) {
	c, ok := busColor[msg.Bus()]
	if !ok {
		c = yellow
	}
	fmt.Printf("%s %s %s\n", msg.Received().Format("15:04:05.000"), c("%-22s", msg.Source()), msg.Payload())
}

// startCore starts the dispatcher and opens every enabled connection, or
// only the one called name when set. Connections that fail to open are
// logged and skipped.
func startCore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, name string) (*navcomm.Core, []navcomm.Driver, error) {
	opts := []navcomm.Option{navcomm.WithLogger(log)}
	if cfg.QueueSize > 0 {
		opts = append(opts, navcomm.WithQueueSize(cfg.QueueSize))
	}
	core := navcomm.New(opts...)
	go func() {
		if err := core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("dispatcher stopped")
		}
	}()

	var drivers []navcomm.Driver
	for i, conn := range cfg.Enabled() {
		if name != "" && conn.Name != name {
			continue
		}
		params, err := conn.Params()
		if err != nil {
			log.WithError(err).Errorf("connection %d (%s)", i, conn.Name)
			continue
		}
		d, err := navcomm.MakeDriver(ctx, params, core)
		if err != nil {
			log.WithError(err).Errorf("open %s", params.Identity())
			continue
		}
		drivers = append(drivers, d)
	}
	if name != "" && len(drivers) == 0 {
		core.Close()
		return nil, nil, fmt.Errorf("no enabled connection named %q", name)
	}
	return core, drivers, nil
}

func waitConnected(ctx context.Context, d navcomm.Driver, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		switch d.State() {
		case navcomm.StateConnected:
			return nil
		case navcomm.StateDisconnected, navcomm.StateClosed:
			return fmt.Errorf("%s: %w", d.Params().Identity(), navcomm.ErrNotConnected)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", d.Params().Identity(), ctx.Err())
		case <-t.C:
		}
	}
}
