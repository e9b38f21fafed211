package emulator

import (
	"github.com/Technoculture/zephyr/nble"
)

// handleDiscover walks the registered attribute tables and streams matching
// results back in scenario-sized batches, terminated by an empty success
// batch. An error status from the scenario terminates immediately.
func (c *Controller) handleDiscover(payload []byte) {
	par, err := nble.DecodeDiscoverReq(payload)
	if err != nil {
		c.logger.WithError(err).Error("Emulator: bad discover request")
		return
	}

	if status := c.scenario.status("discover", 0); !status.OK() {
		c.reply(nble.EncodeDiscoverRsp(nble.DiscoverRsp{
			ConnHandle: par.ConnHandle,
			Status:     status,
		}))
		return
	}

	found := c.collect(par)

	batch := c.scenario.BatchSize
	if batch <= 0 {
		batch = len(found)
	}
	for len(found) > 0 {
		n := batch
		if n > len(found) {
			n = len(found)
		}
		c.reply(nble.EncodeDiscoverRsp(nble.DiscoverRsp{
			ConnHandle: par.ConnHandle,
			Status:     0,
			Attrs:      found[:n],
		}))
		found = found[n:]
	}

	// End of results.
	c.reply(nble.EncodeDiscoverRsp(nble.DiscoverRsp{
		ConnHandle: par.ConnHandle,
		Status:     0,
	}))
}

func (c *Controller) collect(par nble.DiscoverParams) []nble.DiscoveredAttr {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []nble.DiscoveredAttr
	for _, svc := range c.services {
		last := svc.handles[len(svc.handles)-1]
		for i, a := range svc.attrs {
			h := svc.handles[i]
			if !par.Range.Contains(h) {
				continue
			}
			switch par.Type {
			case nble.DiscoverPrimary:
				if a.UUID != uuidPrimaryService {
					continue
				}
				declared := nble.UUIDFromValue(c.values[h])
				if par.UUID != "" && declared != par.UUID {
					continue
				}
				out = append(out, nble.PrimaryService{
					UUID:   declared,
					Handle: h,
					Range:  nble.HandleRange{Start: h, End: last},
				})
			case nble.DiscoverInclude:
				if a.UUID != uuidInclude {
					continue
				}
				out = append(out, nble.IncludedService{
					InclHandle: h,
					UUID:       nble.UUIDFromValue(c.values[h]),
					Range:      nble.HandleRange{Start: h, End: last},
				})
			case nble.DiscoverCharacteristic:
				if a.UUID != uuidCharacteristic {
					continue
				}
				decl := nble.Characteristic{DeclHandle: h}
				// The characteristic value sits in the next slot.
				if i+1 < len(svc.attrs) {
					decl.ValueHandle = svc.handles[i+1]
					decl.UUID = svc.attrs[i+1].UUID
				}
				if v := c.values[h]; len(v) > 0 {
					decl.Properties = v[0]
				}
				if par.UUID != "" && decl.UUID != par.UUID {
					continue
				}
				out = append(out, decl)
			case nble.DiscoverDescriptor:
				if a.UUID == uuidPrimaryService || a.UUID == uuidInclude || a.UUID == uuidCharacteristic {
					continue
				}
				if par.UUID != "" && a.UUID != par.UUID {
					continue
				}
				out = append(out, nble.Descriptor{Handle: h, UUID: a.UUID})
			}
		}
	}
	return out
}
