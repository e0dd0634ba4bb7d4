package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/roffe/navcomm"
	"github.com/spf13/cobra"
)

const flagRefresh = "refresh"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "open all enabled connections and show their state and counters",
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
		refresh, _ := cmd.Flags().GetDuration(flagRefresh)
		if refresh <= 0 {
			refresh = time.Second
		}

		core, drivers, err := startCore(ctx, cfg, log, "")
		if err != nil {
			return err
		}
		defer core.Close()
		if len(drivers) == 0 {
			log.Warnf("no enabled connections in %s", path)
		}

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		// log entries go to the log view while it is up, stderr would tear
		// the screen
		log.SetConsole(&viewWriter{g: g, name: "log"})
		defer log.SetConsole(os.Stderr)
		defer g.Close()

		g.SetManagerFunc(statusLayout)
		if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
			return err
		}
		if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
			return err
		}

		done := make(chan struct{})
		defer close(done)
		go refreshStatus(ctx, done, g, core, refresh)

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Duration(flagRefresh, time.Second, "refresh interval")
	rootCmd.AddCommand(statusCmd)
}

func statusLayout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	split := maxY * 2 / 3
	if v, err := g.SetView("drivers", 0, 0, maxX-1, split); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Drivers <q> quit"
	}
	if v, err := g.SetView("log", 0, split+1, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Log"
		v.Autoscroll = true
		v.Wrap = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func refreshStatus(ctx context.Context, done <-chan struct{}, g *gocui.Gui, core *navcomm.Core, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		g.Update(func(g *gocui.Gui) error {
			v, err := g.View("drivers")
			if err != nil {
				return nil
			}
			v.Clear()
			renderStatus(v, core)
			return nil
		})
		select {
		case <-done:
			return
		case <-ctx.Done():
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case <-t.C:
		}
	}
}

// renderStatus writes one line per active driver followed by the dispatcher
// counters.
func renderStatus(w io.Writer, core *navcomm.Core) {
	fmt.Fprintf(w, "%-28s %-20s %-13s %8s %8s %8s %8s\n", "CONNECTION", "DRIVER", "STATE", "RECV", "SENT", "DROPPED", "ERRORS")
	for _, d := range core.Registry.Drivers() {
		st := d.Stats()
		fmt.Fprintf(w, "%-28s %-20s %-13s %8d %8d %8d %8d\n",
			d.Params().Identity(), d.Name(), d.State(), st.Received, st.Sent, st.Dropped, st.DecodeErrors)
	}
	fmt.Fprintf(w, "\ndispatcher: queued %d delivered %d dropped %d\n",
		core.Dispatcher.Len(), core.Dispatcher.Delivered(), core.Dispatcher.Dropped())
}

// viewWriter appends to a view from any goroutine.
type viewWriter struct {
	g    *gocui.Gui
	name string
}

func (w *viewWriter) Write(p []byte) (int, error) {
	line := string(p)
	w.g.Update(func(g *gocui.Gui) error {
		v, err := g.View(w.name)
		if err != nil {
			// not laid out yet
			return nil
		}
		fmt.Fprint(v, line)
		return nil
	})
	return len(p), nil
}
