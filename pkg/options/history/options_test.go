package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		errs int
	}{
		{"defaults", *NewOptions(), 0},
		{"odd cap", Options{MaxMessages: 3, SweepInterval: time.Minute}, 1},
		{"negative window", Options{Window: -1, SweepInterval: time.Minute}, 1},
		{"ttl without sweep", Options{IdleTTL: time.Hour}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.opts.Validate(), tt.errs)
		})
	}
}
