package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/roffe/navcomm"
	"github.com/roffe/navcomm/pkg/config"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "add a connection to the config interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name, params, err := promptConnection()
		if err != nil {
			return err
		}
		cfg.Connections = append(cfg.Connections, config.FromParams(name, params))
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("added %s (%s) to %s\n", yellow(name), params, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}

const defaultProtocol = "default"

func promptConnection() (string, *navcomm.ConnectionParams, error) {
	name, err := (&promptui.Prompt{Label: "Name", Validate: notEmpty}).Run()
	if err != nil {
		return "", nil, err
	}

	transports := []string{navcomm.TransportSerial.String(), navcomm.TransportNetwork.String(), navcomm.TransportCAN.String()}
	_, ts, err := (&promptui.Select{Label: "Transport", Items: transports, HideHelp: true}).Run()
	if err != nil {
		return "", nil, err
	}
	transport, err := navcomm.ParseTransport(ts)
	if err != nil {
		return "", nil, err
	}

	protocols := []string{defaultProtocol}
	for _, d := range navcomm.SupportedCombinations() {
		if d.Transport == transport {
			protocols = append(protocols, d.Protocol.String())
		}
	}
	_, ps, err := (&promptui.Select{Label: "Protocol", Items: protocols, HideHelp: true}).Run()
	if err != nil {
		return "", nil, err
	}
	p := &navcomm.ConnectionParams{Transport: transport}
	if ps != defaultProtocol {
		if p.Protocol, err = navcomm.ParseProtocol(ps); err != nil {
			return "", nil, err
		}
	}

	switch transport {
	case navcomm.TransportSerial:
		if p.Port, err = promptSerialPort(); err != nil {
			return "", nil, err
		}
		if p.Baudrate, err = promptInt("Baudrate (0 = protocol default)", 0); err != nil {
			return "", nil, err
		}
	case navcomm.TransportNetwork:
		_, np, err := (&promptui.Select{Label: "IP protocol", Items: []string{"tcp", "udp"}, HideHelp: true}).Run()
		if err != nil {
			return "", nil, err
		}
		if p.NetProtocol, err = navcomm.ParseNetProtocol(np); err != nil {
			return "", nil, err
		}
		hostPrompt := &promptui.Prompt{Label: "Host"}
		if p.NetProtocol == navcomm.NetTCP {
			hostPrompt.Validate = notEmpty
		}
		if p.Host, err = hostPrompt.Run(); err != nil {
			return "", nil, err
		}
		if p.NetPort, err = promptInt("Port (0 = protocol default)", 0); err != nil {
			return "", nil, err
		}
	case navcomm.TransportCAN:
		items := navcomm.FindCANInterfaces()
		if len(items) == 0 {
			items = []string{"can0"}
		}
		if _, p.Interface, err = (&promptui.Select{Label: "Interface", Items: items, HideHelp: true}).Run(); err != nil {
			return "", nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	return name, p, nil
}

func promptSerialPort() (string, error) {
	const other = "other..."
	ports, _ := navcomm.FindSerialPorts()
	items := make([]string, 0, len(ports)+1)
	for _, p := range ports {
		items = append(items, p.Name)
	}
	items = append(items, other)
	_, port, err := (&promptui.Select{Label: "Port", Items: items, HideHelp: true}).Run()
	if err != nil || port != other {
		return port, err
	}
	return (&promptui.Prompt{Label: "Port", Validate: notEmpty}).Run()
}

func promptInt(label string, def int) (int, error) {
	s, err := (&promptui.Prompt{
		Label:   label,
		Default: strconv.Itoa(def),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return errors.New("not a positive number")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func notEmpty(s string) error {
	if s == "" {
		return errors.New("required")
	}
	return nil
}
