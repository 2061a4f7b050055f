package sidcache

import "github.com/dreamware/pvfsmeta/internal/errs"

var errNoServers = errs.New(errs.PolicyUnsatisfied, "no servers matched the selection policy")
