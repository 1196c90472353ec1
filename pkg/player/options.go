package player

import (
	"time"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Default session settings
const (
	DefaultPageSize       = 10
	DefaultBrowserTimeout = 60 * time.Second
	DefaultNetworkTimeout = 10 * time.Second
	DefaultUITimeout      = 5 * time.Second
)

// Options configures sessions and browsers created by a Manager
type Options struct {
	HistorySize    int
	PageSize       int
	BrowserTimeout time.Duration
	NetworkTimeout time.Duration
	UITimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistorySize <= 0 {
		o.HistorySize = common.DefaultHistorySize
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.BrowserTimeout <= 0 {
		o.BrowserTimeout = DefaultBrowserTimeout
	}
	if o.NetworkTimeout <= 0 {
		o.NetworkTimeout = DefaultNetworkTimeout
	}
	if o.UITimeout <= 0 {
		o.UITimeout = DefaultUITimeout
	}
	return o
}
