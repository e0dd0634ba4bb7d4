package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/nmea2000"
	"github.com/spf13/cobra"
)

const (
	flagConnection = "connection"
	flagPGN        = "pgn"
	flagPriority   = "priority"
	flagDest       = "dst"
	flagTimeout    = "timeout"
)

var sendCmd = &cobra.Command{
	Use:   "send <payload>",
	Short: "send one message on a configured connection",
	Long: `Send one message. The payload is a sentence for NMEA 0183 connections,
hex data for NMEA 2000 (with --pgn) and a delta document for Signal K.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		name, _ := cmd.Flags().GetString(flagConnection)
		core, drivers, err := startCore(ctx, cfg, log, name)
		if err != nil {
			return err
		}
		defer core.Close()
		if len(drivers) == 0 {
			return fmt.Errorf("no connection to send on")
		}
		d := drivers[0]

		payload, err := buildPayload(cmd, d.Addr().Bus(), args[0])
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration(flagTimeout)
		if err := waitConnected(ctx, d, timeout); err != nil {
			return err
		}
		if err := d.SendMessage(ctx, navcomm.NewNavMsg(navcomm.NavAddr{}, payload, time.Time{}), d.Addr()); err != nil {
			return err
		}
		fmt.Printf("sent %s to %s\n", yellow("%s", payload), d.Addr())
		return nil
	},
}

func init() {
	f := sendCmd.Flags()
	f.String(flagConnection, "", "connection name, first enabled if empty")
	f.Uint32(flagPGN, 0, "NMEA 2000 PGN")
	f.Uint8(flagPriority, 6, "NMEA 2000 priority")
	f.Uint8(flagDest, 255, "NMEA 2000 destination address")
	f.Duration(flagTimeout, 10*time.Second, "how long to wait for the connection")
	rootCmd.AddCommand(sendCmd)
}

func buildPayload(cmd *cobra.Command, bus navcomm.Bus, arg string) (navcomm.Payload, error) {
	switch bus {
	case navcomm.BusNMEA0183:
		return navcomm.NewN0183Payload(arg)
	case navcomm.BusSignalK:
		return navcomm.NewSignalKPayload([]byte(arg))
	case navcomm.BusNMEA2000:
		pgn, _ := cmd.Flags().GetUint32(flagPGN)
		if pgn == 0 {
			return nil, fmt.Errorf("--%s is required for NMEA 2000", flagPGN)
		}
		prio, _ := cmd.Flags().GetUint8(flagPriority)
		dst, _ := cmd.Flags().GetUint8(flagDest)
		data, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		return navcomm.NewN2KPayload(nmea2000.Header{PGN: pgn, Priority: prio, Destination: dst}, data), nil
	}
	return nil, fmt.Errorf("%s: %w", bus, navcomm.ErrUnsupported)
}
