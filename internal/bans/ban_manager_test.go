package bans

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sauerbraten/chef/pkg/ips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetBan(t *testing.T) {
	bm := New(zap.NewNop())
	bm.AddBan(ips.GetSubnet("10.0."), "griefing", time.Time{}, "")

	reason, banned := bm.IsBanned(net.ParseIP("10.0.3.4"))
	assert.True(t, banned)
	assert.Equal(t, "griefing", reason)

	_, banned = bm.IsBanned(net.ParseIP("10.1.3.4"))
	assert.False(t, banned)
}

func TestExpiredBansAreDropped(t *testing.T) {
	now := time.Unix(1000, 0)
	bm := New(zap.NewNop())
	bm.now = func() time.Time { return now }

	bm.AddBan(ips.GetSubnet("192.168.1.1"), "cooldown", now.Add(time.Minute), "")
	_, banned := bm.IsBanned(net.ParseIP("192.168.1.77"))
	assert.True(t, banned)

	now = now.Add(2 * time.Minute)
	_, banned = bm.IsBanned(net.ParseIP("192.168.1.77"))
	assert.False(t, banned)
	assert.Zero(t, bm.Len())
}

func TestMasterServerCommands(t *testing.T) {
	bm := New(zap.NewNop())

	assert.True(t, bm.Handle("master.example.org", "addgban 88.1."))
	assert.True(t, bm.Handle("master.example.org", "addgban 99.1.2.3"))
	assert.False(t, bm.Handle("master.example.org", "succreg"))

	reason, banned := bm.IsBanned(net.ParseIP("88.1.200.1"))
	require.True(t, banned)
	assert.Equal(t, "banned by master.example.org", reason)
	assert.Equal(t, 2, bm.Len())

	bm.Handle("master.example.org", "cleargbans")
	_, banned = bm.IsBanned(net.ParseIP("88.1.200.1"))
	assert.False(t, banned)
	assert.Zero(t, bm.Len())
}

func TestLocalBansSurviveClear(t *testing.T) {
	bm := New(zap.NewNop())
	bm.AddBan(ips.GetSubnet("88.1."), "local", time.Time{}, "")
	bm.Handle("master.example.org", "addgban 88.1.")
	bm.Handle("master.example.org", "cleargbans")

	reason, banned := bm.IsBanned(net.ParseIP("88.1.0.1"))
	require.True(t, banned)
	assert.Equal(t, "local", reason)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"network": "10.0.0.0/8", "reason": "lan party"},
		{"network": "172.16.", "reason": "until tomorrow", "expiry_date": 4102444800}
	]`), 0o644))

	list, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "10.0.0.0/8", list[0].Network.String())
	assert.True(t, list[0].ExpiryDate.IsZero())
	assert.Equal(t, "172.16.0.0/16", list[1].Network.String())
	assert.Equal(t, int64(4102444800), list[1].ExpiryDate.Unix())

	bm := New(zap.NewNop(), list...)
	_, banned := bm.IsBanned(net.ParseIP("10.200.0.1"))
	assert.True(t, banned)
}
