package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/animated-dev/animated/discovery"
	"github.com/animated-dev/animated/internal/announcer"
	"github.com/animated-dev/animated/internal/jsonutil"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/metainfo"
	"github.com/animated-dev/animated/internal/tracker"
	"github.com/urfave/cli"
)

const defaultConfig = "~/.animated.yaml"

var log = logger.New("animated")

func main() {
	app := cli.NewApp()
	app.Name = "animated"
	app.Usage = "Find the peers of a torrent and verify them with the BitTorrent handshake"
	app.Version = discovery.Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read config from `FILE`",
			Value: defaultConfig,
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug log",
		},
		cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colored output",
		},
	}
	app.Before = handleBeforeCommand
	app.Commands = []cli.Command{
		{
			Name:      "info",
			Usage:     "show the contents of a torrent file",
			ArgsUsage: "<file.torrent>",
			Action:    handleInfo,
		},
		{
			Name:      "announce",
			Usage:     "announce the torrent to its trackers and print the peer list",
			ArgsUsage: "<file.torrent>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "event",
					Usage: "announce event: started, stopped, completed or empty",
				},
			},
			Action: handleAnnounce,
		},
		{
			Name:      "connect",
			Usage:     "get peers of the torrent and do the handshake with each of them",
			ArgsUsage: "<file.torrent>",
			Flags: []cli.Flag{
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "give up after `DURATION`; zero waits for all peers",
				},
				cli.BoolFlag{
					Name:  "stats",
					Usage: "print session counters",
				},
			},
			Action: handleConnect,
		},
		{
			Name:      "serve",
			Usage:     "answer incoming handshakes for the torrent",
			ArgsUsage: "<file.torrent>",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "port",
					Usage: "listen `PORT`; overrides the config file",
				},
			},
			Action: handleServe,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Error(errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage returns a short message for announce errors and err itself otherwise.
func errorMessage(err error) string {
	var trackerErr *tracker.Error
	if errors.Is(err, tracker.ErrTrackerUnreachable) || errors.Is(err, tracker.ErrMalformedResponse) || errors.As(err, &trackerErr) {
		log.Debugln("announce error:", err)
		return announcer.Describe(err)
	}
	return err.Error()
}

func handleBeforeCommand(c *cli.Context) error {
	logger.SetDebug(c.GlobalBool("debug"))
	if c.GlobalBool("no-color") {
		jsonutil.SetColor(false)
	}
	return nil
}

func loadConfig(c *cli.Context) (*discovery.Config, error) {
	return discovery.LoadConfig(c.GlobalString("config"))
}

func loadTorrent(c *cli.Context) (*metainfo.MetaInfo, error) {
	if c.NArg() != 1 {
		return nil, errors.New("give a torrent file as argument")
	}
	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return metainfo.New(f)
}

func newSession(c *cli.Context) (*discovery.Session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if port := c.Int("port"); port != 0 {
		cfg.Port = port
	}
	return discovery.New(*cfg)
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-signalC:
			log.Infof("received %s, stopping", s)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signalC)
	}()
	return ctx, cancel
}

func printJSON(v interface{}) error {
	b, err := jsonutil.MarshalPretty(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

func printCompact(v interface{}) error {
	b, err := jsonutil.MarshalCompactPretty(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

type torrentInfo struct {
	Name        string
	InfoHash    string
	Trackers    []string
	PieceLength uint32
	Pieces      uint32
	Length      int64
	Files       []string
}

func handleInfo(c *cli.Context) error {
	mi, err := loadTorrent(c)
	if err != nil {
		return err
	}
	info := torrentInfo{
		Name:        mi.Info.Name,
		InfoHash:    hex.EncodeToString(mi.InfoHash[:]),
		Trackers:    discovery.Trackers(mi),
		PieceLength: mi.Info.PieceLength,
		Pieces:      mi.Info.NumPieces(),
		Length:      mi.Info.TotalLength(),
	}
	for _, f := range mi.Info.GetFiles() {
		info.Files = append(info.Files, strings.Join(f.Path, "/"))
	}
	return printCompact(info)
}

func parseEvent(s string) (tracker.Event, error) {
	switch s {
	case "":
		return tracker.EventNone, nil
	case tracker.EventStarted.String():
		return tracker.EventStarted, nil
	case tracker.EventStopped.String():
		return tracker.EventStopped, nil
	case tracker.EventCompleted.String():
		return tracker.EventCompleted, nil
	}
	return tracker.EventNone, fmt.Errorf("unknown event: %q", s)
}

type announceOutput struct {
	Interval time.Duration
	Seeders  int32
	Leechers int32
	Warning  string
	Peers    []string
}

func handleAnnounce(c *cli.Context) error {
	e, err := parseEvent(c.String("event"))
	if err != nil {
		return err
	}
	mi, err := loadTorrent(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := signalContext(0)
	defer cancel()
	resp, err := s.Announce(ctx, mi, e)
	if err != nil {
		return err
	}
	out := announceOutput{
		Interval: resp.Interval,
		Seeders:  resp.Seeders,
		Leechers: resp.Leechers,
		Warning:  resp.WarningMessage,
		Peers:    make([]string, len(resp.Peers)),
	}
	for i, p := range resp.Peers {
		out.Peers[i] = p.String()
	}
	return printCompact(out)
}

func handleConnect(c *cli.Context) error {
	mi, err := loadTorrent(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := signalContext(c.Duration("timeout"))
	defer cancel()
	report, err := s.Discover(ctx, mi)
	if err != nil {
		return err
	}
	if err = printJSON(report); err != nil {
		return err
	}
	if c.Bool("stats") {
		return printCompact(s.Stats())
	}
	return nil
}

func handleServe(c *cli.Context) error {
	mi, err := loadTorrent(c)
	if err != nil {
		return err
	}
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx, cancel := signalContext(0)
	defer cancel()
	if err = s.Serve(ctx, mi); err != nil {
		return err
	}
	return printCompact(s.Stats())
}
