// Package dns implements the dns binding contract (spec §6):
// dns.lookup, built on the Promise template (internal/binding.Promise)
// since a DNS query is blocking work suited to the thread pool,
// grounded on original_source/src/dns.rs's lookup() shape (hostname
// in, a list of {address, family} records out).
package dns

import (
	"fmt"
	"net"

	"github.com/dunerun/dune/internal/binding"
	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/eventloop"
)

type record struct {
	Address string `json:"address"`
	Family  string `json:"family"`
}

// Install registers the dns binding and dns.lookup.
func Install(reg *bindings.Registry, q *binding.Queue, handle *eventloop.LoopHandle) error {
	lookup := func(cbID int, hostname string) {
		binding.Promise(q, handle, func() (any, error) {
			ips, err := net.LookupIP(hostname)
			if err != nil {
				return nil, fmt.Errorf("looking up %q: %w", hostname, err)
			}
			out := make([]record, 0, len(ips))
			for _, ip := range ips {
				family := "IPv6"
				if ip.To4() != nil {
					family = "IPv4"
				}
				out = append(out, record{Address: ip.String(), Family: family})
			}
			return out, nil
		}, func(result any, err error) {
			_ = reg.InvokeCallback(cbID, false, err, result)
		})
	}
	if err := reg.Func("dns", "lookupStart", "__dnsLookupStart", lookup); err != nil {
		return err
	}

	reg.Raw(`
globalThis.dns = globalThis.dns || {};
dns.lookup = function(hostname) {
	return __asPromise(function(cbID) { __dnsLookupStart(cbID, hostname); });
};
`)
	return nil
}
