// Package history provides conversation history options.
package history

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 会话历史配置，零值均表示不限制。
type Options struct {
	// MaxMessages 每个会话保留的最大消息数，超出后丢弃最早的消息。
	MaxMessages int `json:"max-messages" mapstructure:"max-messages"`

	// Window 发送给模型的最近消息数。
	Window int `json:"window" mapstructure:"window"`

	// IdleTTL 会话空闲多久后被清理。
	IdleTTL time.Duration `json:"idle-ttl" mapstructure:"idle-ttl"`

	// SweepInterval 空闲清理的执行间隔。
	SweepInterval time.Duration `json:"sweep-interval" mapstructure:"sweep-interval"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		SweepInterval: time.Minute,
	}
}

// AddFlags adds flags for history options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "history."
	fs.IntVar(&o.MaxMessages, p+"max-messages", o.MaxMessages, "Messages kept per session (0 keeps all).")
	fs.IntVar(&o.Window, p+"window", o.Window, "Most recent messages sent to the model (0 sends all).")
	fs.DurationVar(&o.IdleTTL, p+"idle-ttl", o.IdleTTL, "Evict sessions idle for this long (0 disables).")
	fs.DurationVar(&o.SweepInterval, p+"sweep-interval", o.SweepInterval, "How often idle sessions are evicted.")
}

// Validate validates the history options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("history.max-messages must not be negative"))
	}
	if o.MaxMessages%2 != 0 {
		errs = append(errs, fmt.Errorf("history.max-messages must be even so exchanges stay paired"))
	}
	if o.Window < 0 {
		errs = append(errs, fmt.Errorf("history.window must not be negative"))
	}
	if o.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("history.idle-ttl must not be negative"))
	}
	if o.IdleTTL > 0 && o.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("history.sweep-interval must be positive when idle-ttl is set"))
	}
	return errs
}

// Complete completes the history options with defaults.
func (o *Options) Complete() error {
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	return nil
}
