package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/bans"
	"github.com/sauerbraten/arena/internal/clock"
	"github.com/sauerbraten/arena/internal/enet"
	"github.com/sauerbraten/arena/internal/events"
	"github.com/sauerbraten/arena/internal/hud"
	"github.com/sauerbraten/arena/internal/masterserver"
	"github.com/sauerbraten/arena/internal/rng"
	"github.com/sauerbraten/arena/internal/session"
	"github.com/sauerbraten/arena/internal/stats"
	"github.com/sauerbraten/arena/internal/transport"
	"github.com/sauerbraten/arena/internal/validate"
	"github.com/sauerbraten/arena/internal/ws"
)

var (
	configFile = flag.String("config", "config.json", "path to the config file")
	hostGame   = flag.Bool("host", false, "host a new game")
	joinAddr   = flag.String("join", "", "address of the server to join")
	name       = flag.String("name", "", "your display name")
)

func main() {
	flag.Parse()

	conf, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalln(err)
	}

	logger, err := conf.logger()
	if err != nil {
		log.Fatalln(err)
	}
	defer logger.Sync()

	if err := run(conf, logger); err != nil {
		logger.Fatal("arena stopped", zap.Error(err))
	}
}

func run(conf *Config, logger *zap.Logger) error {
	if !validate.IsValidDisplayName(*name) {
		return fmt.Errorf("invalid name %q: use 1 to 16 letters and digits", *name)
	}
	if *hostGame == (*joinAddr != "") {
		return errors.New("pass either -host or -join <address>")
	}
	if *joinAddr != "" && !validate.IsValidEndpoint(*joinAddr) {
		return fmt.Errorf("invalid server address %q", *joinAddr)
	}

	// timer callbacks are run by the main loop
	posted := make(chan func(), 64)
	clk := clock.NewReal(func(f func()) { posted <- f })

	g := &game{
		conf:   conf,
		log:    logger,
		posted: posted,
		bus:    &events.Bus{},
		rng:    rng.New(0),
	}

	if *hostGame {
		g.t, err = g.listen()
	} else {
		g.t, err = g.dial(*joinAddr)
	}
	if err != nil {
		return err
	}

	deps := session.Deps{
		Bus:   g.bus,
		Clock: clk,
		Rng:   g.rng,
		Log:   logger.Named("session"),
	}
	if *hostGame {
		g.bans, err = g.loadBans()
		if err != nil {
			return err
		}
		deps.Bans = g.bans

		if conf.StatsDatabase != "" {
			g.stats, err = stats.Open(conf.StatsDatabase, logger.Named("stats"))
			if err != nil {
				return err
			}
			defer g.stats.Close()
			deps.Stats = g.stats
		}
	}

	g.sess = session.New(g.t, conf.sessionConfig(), deps)
	g.hud = hud.New(os.Stdout, g.rng, func() { g.sess.SetInputEnabled(false) }, func() { g.sess.SetInputEnabled(true) })
	g.hud.Attach(g.bus)
	g.console = &console{sess: g.sess, hud: g.hud, stats: g.stats, killY: conf.Arena.KillY}

	g.bus.OnKickedFromServer(func(string) { g.over = true })
	g.bus.OnServerShutDown(func() { g.over = true })
	g.bus.OnJoinFailed(func(string) { g.over = true })

	if *hostGame {
		if err := g.sess.Host(*name); err != nil {
			return err
		}
		logger.Info("server running", zap.Int("port", conf.ListenPort), zap.String("transport", conf.Transport))
		g.registerAtMaster()
	} else {
		if err := g.sess.Join(*name); err != nil {
			return err
		}
		g.hud.Print("connecting to " + *joinAddr + " ...")
	}

	g.loop()
	return g.sess.Close()
}

type game struct {
	conf   *Config
	log    *zap.Logger
	posted chan func()
	bus    *events.Bus
	rng    rng.Source

	t       transport.Transport
	sess    *session.Session
	hud     *hud.HUD
	console *console
	bans    *bans.BanManager
	stats   *stats.Store

	master    *masterserver.MasterServer
	masterInc <-chan string
	httpSrv   *http.Server

	over bool
}

func (g *game) listen() (transport.Transport, error) {
	if g.conf.Transport == "enet" {
		return enet.Listen(g.conf.ListenPort, g.conf.MaxClients, g.log.Named("enet"))
	}

	srv := ws.NewServer(g.log.Named("ws"))
	g.httpSrv = &http.Server{
		Addr:              ":" + strconv.Itoa(g.conf.ListenPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", g.httpSrv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", g.httpSrv.Addr, err)
	}
	go func() {
		if err := g.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("http server stopped", zap.Error(err))
		}
	}()
	return srv, nil
}

func (g *game) dial(addr string) (transport.Transport, error) {
	if g.conf.Transport == "enet" {
		return enet.Dial(addr, g.conf.ListenPort, g.log.Named("enet"))
	}
	url := "ws://" + net.JoinHostPort(addr, strconv.Itoa(g.conf.ListenPort)) + "/ws"
	return ws.Dial(url, g.log.Named("ws"))
}

func (g *game) loadBans() (*bans.BanManager, error) {
	var list []*bans.Ban
	if _, err := os.Stat(g.conf.BansFile); err == nil {
		list, err = bans.FromFile(g.conf.BansFile)
		if err != nil {
			return nil, err
		}
	}
	return bans.New(g.log.Named("bans"), list...), nil
}

func (g *game) registerAtMaster() {
	if g.conf.MasterServerAddress == "" {
		return
	}
	var err error
	g.master, g.masterInc, err = masterserver.New(g.conf.MasterServerAddress, g.conf.ListenPort, g.bans, g.log.Named("master"))
	if err != nil {
		g.log.Warn("could not connect to master server", zap.Error(err))
	}
}

func (g *game) loop() {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	physics := time.NewTicker(time.Second / time.Duration(g.conf.PhysicsRate))
	defer physics.Stop()
	syncState := time.NewTicker(time.Second / time.Duration(g.conf.SyncRate))
	defer syncState.Stop()
	register := time.NewTicker(1 * time.Hour)
	defer register.Stop()

	incoming := g.t.Events()
	arena := g.conf.arena()
	last := time.Now()

	for !g.over {
		select {
		case e, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			g.sess.HandleEvent(e)

		case f := <-g.posted:
			f()

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if !g.console.Handle(line) {
				g.over = true
			}

		case now := <-physics.C:
			g.sess.Tick(now.Sub(last).Seconds(), g.console.Frame(), arena)
			last = now

		case <-syncState.C:
			g.sess.FlushState()

		case msg := <-g.masterInc:
			g.master.Handle(msg)

		case <-register.C:
			if g.master != nil {
				g.master.Register()
			}

		case sig := <-sigs:
			g.log.Info("shutting down", zap.Stringer("signal", sig))
			g.over = true
		}
	}

	g.shutdown()
}

func (g *game) shutdown() {
	if g.master != nil {
		g.master.Close()
	}
	if g.httpSrv != nil {
		g.httpSrv.Close()
	}
}
