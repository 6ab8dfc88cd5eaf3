// Package index provides corpus index options.
package index

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 语料索引配置。
type Options struct {
	// BuildWorkers 构建索引时并发计算向量的协程数，1 表示顺序执行。
	BuildWorkers int `json:"build-workers" mapstructure:"build-workers"`

	// Warmup 启动时预先构建索引。
	Warmup bool `json:"warmup" mapstructure:"warmup"`

	// Watch 监听知识库目录，变化时重建索引。
	Watch bool `json:"watch" mapstructure:"watch"`

	// WatchDebounce 文件变化的合并窗口。
	WatchDebounce time.Duration `json:"watch-debounce" mapstructure:"watch-debounce"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BuildWorkers:  1,
		WatchDebounce: 2 * time.Second,
	}
}

// AddFlags adds flags for index options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "index."
	fs.IntVar(&o.BuildWorkers, p+"build-workers", o.BuildWorkers, "Concurrent embedding workers during index build.")
	fs.BoolVar(&o.Warmup, p+"warmup", o.Warmup, "Build the index at startup instead of on the first question.")
	fs.BoolVar(&o.Watch, p+"watch", o.Watch, "Rebuild the index when the knowledge directory changes.")
	fs.DurationVar(&o.WatchDebounce, p+"watch-debounce", o.WatchDebounce, "Quiet period before a change triggers a rebuild.")
}

// Validate validates the index options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BuildWorkers < 1 {
		errs = append(errs, fmt.Errorf("index.build-workers must be at least 1"))
	}
	if o.Watch && o.WatchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("index.watch-debounce must be positive"))
	}
	return errs
}

// Complete completes the index options with defaults.
func (o *Options) Complete() error {
	if o.BuildWorkers < 1 {
		o.BuildWorkers = 1
	}
	return nil
}
