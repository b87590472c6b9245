// Command deskpin is a diagnostic CLI for the desktop-shell attachment
// subsystem: probe availability, pin/unpin arbitrary windows by native
// handle, or hold a window pinned while the consistency sweep runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/deskpin/deskpin/internal/config"
	"github.com/deskpin/deskpin/internal/focus"
	"github.com/deskpin/deskpin/internal/win32"
	"github.com/deskpin/deskpin/pkg/deskpin"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "probe":
		os.Exit(runProbe(os.Args[2:]))
	case "pin":
		os.Exit(runPin(os.Args[2:], true))
	case "unpin":
		os.Exit(runPin(os.Args[2:], false))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: deskpin <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  probe           Report whether desktop attachment works here")
	fmt.Fprintln(w, "  pin <hwnd>      Attach a window to the desktop icon layer")
	fmt.Fprintln(w, "  unpin <hwnd>    Detach a window back to the top level")
	fmt.Fprintln(w, "  watch <hwnd>    Pin a window and keep its Z-order corrected until Ctrl-C")
	fmt.Fprintln(w, "  config          Print the effective configuration")
	fmt.Fprintln(w, "  help            Show this help")
}

func newPinner() (*deskpin.Pinner, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	return deskpin.New(cfg, logger), logger, nil
}

func parseHandle(arg string) (win32.Handle, error) {
	// Accept decimal or 0x-prefixed hex, matching what Spy++ and similar
	// tools display.
	v, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		return win32.None, fmt.Errorf("invalid window handle %q: %w", arg, err)
	}
	return win32.Handle(v), nil
}

func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	fs.Parse(args)

	p, _, err := newPinner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !p.Available() {
		fmt.Println("desktop attachment: unavailable")
		return 1
	}
	fmt.Println("desktop attachment: available")
	if iconView, container, ok := p.ShellInfo(); ok {
		fmt.Printf("icon view:  0x%X\ncontainer:  0x%X\n", uintptr(iconView), uintptr(container))
	} else {
		fmt.Println("icon layer: not resolved (shell restarting?)")
	}
	return 0
}

func runPin(args []string, enable bool) int {
	name := "unpin"
	if enable {
		name = "pin"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: deskpin %s <hwnd>\n", name)
		return 2
	}
	h, err := parseHandle(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	p, _, err := newPinner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	id := fmt.Sprintf("cli-%s", fs.Arg(0))
	if !p.Toggle(id, func() win32.Handle { return h }, enable) {
		fmt.Fprintf(os.Stderr, "%s failed for 0x%X\n", name, uintptr(h))
		return 1
	}
	// One-shot pin: drop tracking but leave the window where it is. The
	// sweep only matters for long-lived attachments (see watch).
	p.CleanupAll()
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: deskpin watch <hwnd>")
		return 2
	}
	h, err := parseHandle(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	p, logger, err := newPinner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	monitor := focus.NewMonitor(h, logger)
	if err := monitor.Start(); err != nil {
		logger.Info("focus monitoring disabled", "error", err)
		monitor = nil
	}

	id := fmt.Sprintf("cli-%s", fs.Arg(0))
	handle := func() win32.Handle { return h }
	var obs deskpin.Observer
	if monitor != nil {
		obs = monitor
	}
	if !p.Attach(id, handle, obs) {
		fmt.Fprintf(os.Stderr, "attach failed for 0x%X\n", uintptr(h))
		return 1
	}
	logger.Info("window pinned, press Ctrl-C to release", "hwnd", fmt.Sprintf("0x%X", uintptr(h)))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if monitor != nil {
		monitor.Stop()
	}
	p.Detach(id, handle)
	p.CleanupAll()
	logger.Info("window released")
	return 0
}

func runConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if path, err := config.DefaultConfigPath(); err == nil {
		fmt.Printf("# %s\n", path)
	}
	os.Stdout.Write(out)
	return 0
}
