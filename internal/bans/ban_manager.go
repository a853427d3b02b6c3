package bans

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sauerbraten/chef/pkg/ips"
	"github.com/sauerbraten/jsonfile"
	"github.com/sauerbraten/maitred/v2/pkg/protocol"
	"go.uber.org/zap"
)

// BanManager answers whether a connecting address may join.
type BanManager struct {
	µ    sync.Mutex
	bans map[string]map[string]*Ban // domain -> cidr -> ban
	now  func() time.Time
	log  *zap.Logger
}

func New(log *zap.Logger, bans ...*Ban) *BanManager {
	bm := &BanManager{
		bans: map[string]map[string]*Ban{},
		now:  time.Now,
		log:  log,
	}

	for _, ban := range bans {
		bm.addBan(ban)
	}

	return bm
}

// FromFile reads a JSON list of bans.
func FromFile(fileName string) ([]*Ban, error) {
	var bans []*Ban
	if err := jsonfile.ParseFile(fileName, &bans); err != nil {
		return nil, fmt.Errorf("bans: reading %s: %w", fileName, err)
	}
	return bans, nil
}

func (bm *BanManager) AddBan(network *net.IPNet, reason string, expiryDate time.Time, domain string) {
	bm.µ.Lock()
	defer bm.µ.Unlock()

	bm.addBan(&Ban{
		Network:    network,
		Reason:     reason,
		ExpiryDate: expiryDate,
		Domain:     domain,
	})
}

// not safe for concurrent use
func (bm *BanManager) addBan(ban *Ban) {
	// a local ban on the same network wins over a remote one
	if _, ok := bm.bans[""][ban.Network.String()]; ok && ban.Domain != "" {
		return
	}

	bans, ok := bm.bans[ban.Domain]
	if !ok {
		bans = map[string]*Ban{}
		bm.bans[ban.Domain] = bans
	}
	bans[ban.Network.String()] = ban

	bm.log.Info("added ban", zap.Stringer("ban", ban), zap.String("domain", ban.Domain))
}

// ClearBans drops every ban of a domain.
func (bm *BanManager) ClearBans(domain string) {
	bm.µ.Lock()
	defer bm.µ.Unlock()

	delete(bm.bans, domain)
}

// GetBan finds an active ban covering ip. Expired bans are dropped on the way.
func (bm *BanManager) GetBan(ip net.IP) (ban *Ban, ok bool) {
	bm.µ.Lock()
	defer bm.µ.Unlock()

	now := bm.now()
	for _, bans := range bm.bans {
		for cidr, ban := range bans {
			if !ban.Network.Contains(ip) {
				continue
			}
			if ban.Expired(now) {
				delete(bans, cidr)
				continue
			}
			return ban, true
		}
	}

	return nil, false
}

// IsBanned reports whether ip may not join, and why.
func (bm *BanManager) IsBanned(ip net.IP) (string, bool) {
	ban, ok := bm.GetBan(ip)
	if !ok {
		return "", false
	}
	return ban.Reason, true
}

func (bm *BanManager) Len() int {
	bm.µ.Lock()
	defer bm.µ.Unlock()

	n := 0
	for _, bans := range bm.bans {
		n += len(bans)
	}
	return n
}

// Handle applies a ban command received from the master server at domain.
// It returns false for messages that are not about bans.
func (bm *BanManager) Handle(domain, msg string) bool {
	cmd := strings.Split(msg, " ")[0]
	args := strings.TrimSpace(msg[len(cmd):])

	switch cmd {
	case protocol.ClearBans:
		bm.ClearBans(domain)

	case protocol.AddBan:
		bm.handleAddBan(domain, args)

	default:
		return false
	}

	return true
}

func (bm *BanManager) handleAddBan(domain, args string) {
	var ip string
	if _, err := fmt.Sscanf(args, "%s", &ip); err != nil {
		bm.log.Warn("malformed ban from master server", zap.String("cmd", protocol.AddBan), zap.String("args", args), zap.Error(err))
		return
	}

	network := ips.GetSubnet(ip)
	if network == nil {
		bm.log.Warn("invalid network in ban from master server", zap.String("network", ip))
		return
	}

	bm.AddBan(network, fmt.Sprintf("banned by %s", domain), time.Time{}, domain)
}
