// Package masterserver registers a hosted game at a master server, which
// lists it for players and pushes global bans back.
package masterserver

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sauerbraten/maitred/v2/pkg/protocol"
	"go.uber.org/zap"

	"github.com/sauerbraten/arena/internal/bans"
)

var ErrNotConnected = errors.New("not connected to master server")

const maxReconnectTries = 10

type MasterServer struct {
	addr       string
	domain     string
	listenPort int
	bans       *bans.BanManager
	log        *zap.Logger

	// time between reconnect attempts, multiplied by the attempt number
	ReconnectBackoff time.Duration

	mu         sync.Mutex
	conn       *protocol.Conn
	pingFailed bool
	closed     bool

	inc chan string
}

// New connects to the master server at addr and registers listenPort there.
// Messages from the master server arrive on the returned channel and should
// be passed to Handle. Bans received are added to bm.
func New(addr string, listenPort int, bm *bans.BanManager, log *zap.Logger) (*MasterServer, <-chan string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid master server address (%s): %w", addr, err)
	}

	ms := &MasterServer{
		addr:             addr,
		domain:           host,
		listenPort:       listenPort,
		bans:             bm,
		log:              log.With(zap.String("master", addr)),
		ReconnectBackoff: time.Minute,
		inc:              make(chan string, 16),
	}

	if err := ms.connect(); err != nil {
		return nil, nil, err
	}

	return ms, ms.inc, nil
}

func (ms *MasterServer) connect() error {
	raddr, err := net.ResolveTCPAddr("tcp", ms.addr)
	if err != nil {
		return fmt.Errorf("error resolving master server address (%s): %w", ms.addr, err)
	}

	tcpConn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return fmt.Errorf("error connecting to master server: %w", err)
	}

	conn := protocol.NewConn(ms.onDisconnect)
	conn.Start(tcpConn)

	ms.mu.Lock()
	ms.conn = conn
	ms.mu.Unlock()

	go func() {
		for msg := range conn.Incoming() {
			ms.inc <- msg
		}
	}()

	ms.Register()

	return nil
}

func (ms *MasterServer) onDisconnect(err error) {
	ms.mu.Lock()
	ms.conn = nil
	closed := ms.closed
	ms.mu.Unlock()

	if closed {
		return
	}

	ms.log.Warn("lost connection to master server", zap.Error(err))
	go ms.reconnect()
}

func (ms *MasterServer) reconnect() {
	var err error
	for try := 1; try <= maxReconnectTries; try++ {
		time.Sleep(time.Duration(try) * ms.ReconnectBackoff)

		ms.mu.Lock()
		stop := ms.closed || ms.pingFailed
		ms.mu.Unlock()
		if stop {
			return
		}

		ms.log.Info("trying to reconnect", zap.Int("attempt", try))
		if err = ms.connect(); err == nil {
			ms.log.Info("reconnected to master server")
			return
		}
	}
	ms.log.Error("could not reconnect to master server", zap.Error(err))
}

// Register announces the game port. It is a no-op once the master server
// reported it cannot reach us.
func (ms *MasterServer) Register() {
	ms.mu.Lock()
	failed := ms.pingFailed
	ms.mu.Unlock()
	if failed {
		return
	}

	ms.log.Info("registering at master server")
	if err := ms.Send("%s %d", protocol.RegServ, ms.listenPort); err != nil {
		ms.log.Warn("registering at master server failed", zap.Error(err))
	}
}

func (ms *MasterServer) Send(format string, args ...interface{}) error {
	ms.mu.Lock()
	conn := ms.conn
	ms.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	conn.Send(format, args...)
	return nil
}

func (ms *MasterServer) Handle(msg string) {
	cmd := strings.Split(msg, " ")[0]
	args := strings.TrimSpace(msg[len(cmd):])

	switch cmd {
	case protocol.SuccReg:
		ms.log.Info("master server registration succeeded")

	case protocol.FailReg:
		ms.log.Warn("master server registration failed", zap.String("reason", args))
		if args == "failed pinging server" {
			ms.log.Info("disabling reconnecting")
			ms.mu.Lock()
			ms.pingFailed = true // stop trying
			ms.mu.Unlock()
		}

	default:
		if ms.bans != nil && ms.bans.Handle(ms.domain, msg) {
			return
		}
		ms.log.Debug("received from master", zap.String("msg", msg))
	}
}

func (ms *MasterServer) Close() error {
	ms.mu.Lock()
	ms.closed = true
	conn := ms.conn
	ms.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
