package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/app/minit"
	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/bus"
	"github.com/leviar-network/go-miniwallet/config"
	logging "github.com/leviar-network/go-miniwallet/lib/log"
	"github.com/leviar-network/go-miniwallet/lib/walletfile"
	"github.com/leviar-network/go-miniwallet/node"
	"github.com/leviar-network/go-miniwallet/progress"
	"github.com/leviar-network/go-miniwallet/session"
	"github.com/leviar-network/go-miniwallet/walletcore"
)

const (
	walletFileKwd    = "wallet-file"
	generateKwd      = "generate-new-wallet"
	passwordKwd      = "password"
	daemonAddressKwd = "daemon-address"
	daemonHostKwd    = "daemon-host"
	daemonPortKwd    = "daemon-port"
	configKwd        = "config"
)

var DaemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "Run the wallet daemon.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  walletFileKwd,
			Usage: "wallet file to open (basename, .wallet or .keys path)",
		},
		&cli.BoolFlag{
			Name:  generateKwd,
			Usage: "generate a new wallet at the given path",
		},
		&cli.StringFlag{
			Name:  passwordKwd,
			Usage: "wallet password; prompted for when omitted",
		},
		&cli.StringFlag{
			Name:  daemonAddressKwd,
			Usage: "chain daemon as host:port",
		},
		&cli.StringFlag{
			Name:  daemonHostKwd,
			Usage: "chain daemon host",
		},
		&cli.UintFlag{
			Name:  daemonPortKwd,
			Usage: "chain daemon port",
		},
		&cli.StringFlag{
			Name:  configKwd,
			Usage: "path to a config file; defaults are used when omitted",
		},
	},
	Action: func(cctx *cli.Context) error {
		return daemonFunc(cctx)
	},
}

func daemonFunc(cctx *cli.Context) (_err error) {
	// let the user know we're going.
	fmt.Printf("Initializing daemon...\n")

	defer func() {
		if _err != nil {
			fmt.Println()
		}
	}()

	minit.PrintVersion()

	stopFunc, err := minit.ProfileIfEnabled()
	if err != nil {
		return err
	}
	defer stopFunc()

	cfg := config.NewDefaultConfig()
	if cfgPath := cctx.String(configKwd); cfgPath != "" {
		cfg, err = config.ReadFile(cfgPath)
		if err != nil {
			return xerrors.Errorf("failed to read config %s %w", cfgPath, err)
		}
	}

	logging.SetLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		logging.SetLogFile(cfg.Log.File)
	}

	host, port, err := resolveDaemonAddress(cctx, cfg)
	if err != nil {
		return err
	}

	walletArg := cctx.String(walletFileKwd)
	if walletArg == "" {
		return xerrors.New("--wallet-file is required")
	}
	paths, err := walletfile.Prepare(walletArg)
	if err != nil {
		return err
	}

	lock, err := paths.Lock()
	if err != nil {
		return err
	}
	defer lock.Close()

	generate := cctx.Bool(generateKwd)
	password := cctx.String(passwordKwd)
	if password == "" {
		if generate {
			password, err = minit.GetNewPassWord()
		} else {
			password, err = minit.GetPassWord()
		}
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proxy := node.NewRPCProxy(host, port)
	if err := proxy.Init(ctx); err != nil {
		return err
	}
	defer proxy.Close()

	engine := walletcore.NewLocalWallet(proxy)
	sess := session.NewManager(engine, paths)
	reporter := progress.NewReporter(engine)
	engine.AddObserver(reporter)
	sess.SetGate(reporter)
	defer sess.Close()

	if generate {
		err = sess.CreateNew(password)
	} else {
		err = sess.OpenOrRecover(password)
	}
	if err != nil {
		return err
	}

	b := bus.New(sess, reporter, bus.Intervals{
		Status:        cfg.Poll.Status(),
		Tx:            cfg.Poll.Tx(),
		ResetIdle:     cfg.Poll.ResetIdle(),
		ResetCooldown: cfg.Poll.ResetCooldown(),
		SaveIdle:      cfg.Poll.SaveIdle(),
		SaveCooldown:  cfg.Poll.SaveCooldown(),
	})
	b.Start(ctx)

	// The daemon is *finally* ready.
	fmt.Printf("Wallet address is %s\n", sess.AddressString())
	fmt.Printf("Daemon is ready\n")

	<-ctx.Done()
	fmt.Printf("Shutting down...\n")
	b.Wait()

	return nil
}

// resolveDaemonAddress merges the daemon location from flags and config.
// --daemon-address conflicts with --daemon-host/--daemon-port.
func resolveDaemonAddress(cctx *cli.Context, cfg *config.Config) (string, uint16, error) {
	host := cfg.Daemon.Host
	port := cfg.Daemon.Port

	combined := cctx.String(daemonAddressKwd)
	if combined != "" {
		if cctx.IsSet(daemonHostKwd) || cctx.IsSet(daemonPortKwd) {
			return "", 0, xerrors.New("--daemon-address conflicts with --daemon-host and --daemon-port")
		}
		h, p, err := net.SplitHostPort(combined)
		if err != nil {
			return "", 0, xerrors.Errorf("bad --daemon-address %q %w", combined, err)
		}
		pn, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return "", 0, xerrors.Errorf("bad daemon port %q %w", p, err)
		}
		return h, uint16(pn), nil
	}

	if cctx.IsSet(daemonHostKwd) {
		host = cctx.String(daemonHostKwd)
	}
	if cctx.IsSet(daemonPortKwd) {
		port = uint16(cctx.Uint(daemonPortKwd))
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = build.DefaultDaemonPort
	}
	return host, port, nil
}
