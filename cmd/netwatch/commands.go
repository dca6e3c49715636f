package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/lifecycle"
	"github.com/getlantern/netwatch/network"
)

const commandHelp = "fg | bg | connectivity [wifi|mobile|offline] | rssi <dBm> | scan <ssid[:rssi]>,... | status | quit"

var errQuit = errors.New("quit")

type commands struct {
	// fg runs lifecycle transitions, which must happen on the executor handlers run on.
	fg      dispatch.Executor
	screen  lifecycle.Host
	monitor *network.Monitor
	manager *lifecycle.Manager
	out     io.Writer
}

// run reads commands from r until EOF or quit.
func (c *commands) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		err := c.exec(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\nusage: %s\n", err, commandHelp)
		}
	}
	return scanner.Err()
}

func (c *commands) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, rest := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "fg", "foreground", "resume":
		return c.transition(c.screen.OnForeground)
	case "bg", "background", "pause":
		return c.transition(c.screen.OnBackground)
	case "connectivity", "conn":
		if len(rest) == 0 {
			fmt.Fprintf(c.out, "connectivity: %s\n", c.monitor.CurrentConnectivity().Description())
			return nil
		}
		if len(rest) != 1 {
			return errors.New("connectivity takes at most one status")
		}
		status := network.ParseConnectivityStatus(rest[0])
		if status == network.Unknown && !strings.EqualFold(rest[0], "unknown") {
			return fmt.Errorf("unknown connectivity status %q", rest[0])
		}
		c.monitor.ReportConnectivity(status)
	case "rssi":
		if len(rest) != 1 {
			return errors.New("rssi takes one value")
		}
		rssi, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("invalid rssi: %w", err)
		}
		c.monitor.ReportRSSI(rssi)
	case "scan":
		aps, err := parseScan(strings.Join(rest, " "))
		if err != nil {
			return err
		}
		c.monitor.ReportScan(aps)
	case "status":
		c.printStatus()
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (c *commands) transition(f func()) error {
	if !c.fg.Post(f) {
		return errors.New("screen is shutting down")
	}
	return nil
}

func (c *commands) printStatus() {
	subs := c.manager.Subscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(c.out, "no subscriptions")
		return
	}
	for _, s := range subs {
		fmt.Fprintf(c.out, "%-14s %-10s %-10s delivered=%d id=%s\n", s.Source, s.State, s.Target, s.Delivered, s.ID)
	}
}

// parseScan parses "home:-50,cafe:-80". The RSSI part is optional.
func parseScan(s string) ([]network.AccessPoint, error) {
	var aps []network.AccessPoint
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ssid, rssi, found := strings.Cut(entry, ":")
		ap := network.AccessPoint{SSID: ssid}
		if found {
			v, err := strconv.Atoi(rssi)
			if err != nil {
				return nil, fmt.Errorf("invalid rssi for %q: %w", ssid, err)
			}
			ap.RSSI = v
		}
		aps = append(aps, ap)
	}
	return aps, nil
}
