package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/woodfish/muyu/go/internal/client"
	"github.com/woodfish/muyu/go/internal/client/settings"
)

func main() {
	app := cli.App{
		Name:  "muyu",
		Usage: "tap the wooden fish together with everyone online",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "path to the settings file",
				EnvVars: []string{"MUYU_SETTINGS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"MUYU_LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			level, err := zerolog.ParseLevel(cctx.String("log-level"))
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		Action: runTap,
		Commands: []*cli.Command{
			{
				Name:   "settings",
				Usage:  "show or change saved settings",
				Action: runSettings,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "theme", Usage: "dark or light"},
					&cli.StringFlag{Name: "server", Usage: "relay address, e.g. localhost:8080"},
					&cli.StringFlag{Name: "room", Usage: "room id to attribute taps to (empty clears)"},
					&cli.BoolFlag{Name: "sound"},
					&cli.BoolFlag{Name: "vibration"},
				},
			},
		},
	}
	app.RunAndExitOnError()
}

func openStore(cctx *cli.Context) (*settings.Store, error) {
	path := cctx.String("settings")
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return settings.Open(path)
}

func runSettings(cctx *cli.Context) error {
	store, err := openStore(cctx)
	if err != nil {
		return err
	}

	prefs, err := store.Update(func(s *settings.Settings) {
		if cctx.IsSet("theme") {
			s.Theme = settings.Theme(cctx.String("theme"))
		}
		if cctx.IsSet("server") {
			s.ServerURL = cctx.String("server")
		}
		if cctx.IsSet("room") {
			s.RoomID = cctx.String("room")
		}
		if cctx.IsSet("sound") {
			s.Sound = cctx.Bool("sound")
		}
		if cctx.IsSet("vibration") {
			s.Vibration = cctx.Bool("vibration")
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("settings: %s\n", store.Path())
	fmt.Printf("  theme:     %s\n", prefs.Theme)
	fmt.Printf("  server:    %s\n", prefs.ServerURL)
	fmt.Printf("  room:      %s\n", prefs.RoomID)
	fmt.Printf("  sound:     %t\n", prefs.Sound)
	fmt.Printf("  vibration: %t\n", prefs.Vibration)
	return nil
}

func runTap(cctx *cli.Context) error {
	store, err := openStore(cctx)
	if err != nil {
		return err
	}
	prefs := store.Get()

	screen := newTerminal(os.Stdout, prefs.Theme)
	app, err := client.NewApp(prefs, screen, screen, client.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	screen.Help()
	app.Start(ctx)
	defer app.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(strings.ToLower(line)) {
			case "":
				app.Tap()
			case "r":
				app.Retry()
			case "q":
				return nil
			default:
				// Every other key taps as many times as characters typed
				for range strings.TrimSpace(line) {
					app.Tap()
				}
			}
		}
	}
}
