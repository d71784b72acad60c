package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Logger          = glog.Nop()
	_ LoggerProvider  = glog.ProviderFromLogger(glog.Nop())
	_ error           = (*APIError)(nil)
	_ error           = (*TokenExchangeError)(nil)
	_ RawConfigLoader = staticRawConfigLoader{}
	_ OptionsResolver = GoOptionsResolver{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
)
