// Package conf loads the server's TOML configuration file, following the
// nested-struct-with-defaults pattern of the teacher's configuration
// layer.
package conf

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// NetConf controls the HTTP/WebSocket listener.
type NetConf struct {
	Listen string `toml:"listen"`
}

// TimeoutConf carries every duration the coordinator and session layer
// depend on. Values are given in the TOML file as plain seconds or
// milliseconds (the unit is part of each field's name) and converted to
// time.Duration by the accessor methods below.
type TimeoutConf struct {
	HeartbeatSeconds      uint `toml:"heartbeat_seconds"`
	ClientTimeoutSeconds  uint `toml:"client_timeout_seconds"`
	MatchmakingTickMillis uint `toml:"matchmaking_tick_millis"`
	PendingMatchSeconds   uint `toml:"pending_match_seconds"`
}

func (t TimeoutConf) Heartbeat() time.Duration {
	return time.Duration(t.HeartbeatSeconds) * time.Second
}

func (t TimeoutConf) ClientTimeout() time.Duration {
	return time.Duration(t.ClientTimeoutSeconds) * time.Second
}

func (t TimeoutConf) MatchmakingTick() time.Duration {
	return time.Duration(t.MatchmakingTickMillis) * time.Millisecond
}

func (t TimeoutConf) PendingMatchTimeout() time.Duration {
	return time.Duration(t.PendingMatchSeconds) * time.Second
}

// LogConf controls the on-disk logger.
type LogConf struct {
	File  string `toml:"file"`
	Debug bool   `toml:"debug"`
}

// MatchConf controls matchmaking defaults not tied to timing.
type MatchConf struct {
	DefaultRating   uint32 `toml:"default_rating"`
	MailboxCapacity uint   `toml:"mailbox_capacity"`
}

// Conf is the root configuration tree.
type Conf struct {
	Net      NetConf     `toml:"net"`
	Timeouts TimeoutConf `toml:"timeouts"`
	Log      LogConf     `toml:"log"`
	Match    MatchConf   `toml:"match"`

	file string
}

// Default mirrors the external interface defaults: listen 127.0.0.1:8080,
// 5s heartbeat, 10s client timeout, 1000ms matchmaking tick, 30s pending
// match timeout, mailbox capacity 100, default rating 1000.
var Default = Conf{
	Net: NetConf{Listen: "127.0.0.1:8080"},
	Timeouts: TimeoutConf{
		HeartbeatSeconds:      5,
		ClientTimeoutSeconds:  10,
		MatchmakingTickMillis: 1000,
		PendingMatchSeconds:   30,
	},
	Log: LogConf{
		File:  "/server/log/actix.log",
		Debug: false,
	},
	Match: MatchConf{
		DefaultRating:   1000,
		MailboxCapacity: 100,
	},
}

// Read decodes the TOML file at name over a copy of Default, so any field
// the file omits keeps its default value.
func Read(name string) (*Conf, error) {
	c := Default

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&c); err != nil {
		return nil, err
	}
	c.file = name
	return &c, nil
}

// Load behaves like Read, but returns a copy of Default instead of an
// error when name does not exist, so an absent config file is tolerated
// at startup.
func Load(name string) (*Conf, error) {
	if _, err := os.Stat(name); os.IsNotExist(err) {
		c := Default
		return &c, nil
	}
	return Read(name)
}
