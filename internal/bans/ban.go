package bans

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sauerbraten/chef/pkg/ips"
)

// Ban blocks a network from joining. Bans with a domain came from a master
// server; local bans have none.
type Ban struct {
	Network    *net.IPNet
	Reason     string
	ExpiryDate time.Time
	Domain     string
}

func (b *Ban) Expired(now time.Time) bool {
	return !b.ExpiryDate.IsZero() && b.ExpiryDate.Before(now)
}

// UnmarshalJSON accepts partial networks like "10.0." as well as CIDR notation.
func (b *Ban) UnmarshalJSON(data []byte) error {
	ban := struct {
		Network    string `json:"network"`
		Reason     string `json:"reason"`
		ExpiryDate int64  `json:"expiry_date"`
	}{}
	if err := json.Unmarshal(data, &ban); err != nil {
		return err
	}

	b.Network = ips.GetSubnet(ban.Network)
	if b.Network == nil {
		return fmt.Errorf("bans: invalid network %q", ban.Network)
	}
	b.Reason = ban.Reason
	if ban.ExpiryDate != 0 {
		b.ExpiryDate = time.Unix(ban.ExpiryDate, 0)
	}
	return nil
}

func (b *Ban) String() string {
	if b.ExpiryDate.IsZero() {
		return fmt.Sprintf("%v is banned indefinitely (%v)", b.Network, b.Reason)
	}
	return fmt.Sprintf("%v is banned until %v (%v)", b.Network, b.ExpiryDate, b.Reason)
}
