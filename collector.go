package hahomematic

import (
	"context"

	"github.com/tonigrzb/hahomematic/types"
)

// ParameterWriter is the slice of the client a collector writes through.
type ParameterWriter interface {
	SetValue(ctx context.Context, channelAddress, parameter string, value any) error
	PutParamset(ctx context.Context, channelAddress, kind string, values map[string]any) error
}

// CallParameterCollector aggregates parameter writes submitted during one
// logical operation and flushes them per channel: a single batched
// putParamset where beneficial, individual setValue calls otherwise. It
// does not outlive a single Send.
type CallParameterCollector struct {
	client ParameterWriter

	usePutParamset bool
	order          []string
	paramsets      map[string]map[string]any
}

// NewCallParameterCollector creates a collector writing through the given
// client.
func NewCallParameterCollector(client ParameterWriter) *CallParameterCollector {
	return &CallParameterCollector{
		client:         client,
		usePutParamset: true,
		paramsets:      map[string]map[string]any{},
	}
}

// Add records one pending parameter write. A write with batch set to false
// opts the whole operation out of batched writes.
func (c *CallParameterCollector) Add(channelAddress, parameter string, value any, batch bool) {
	if !batch {
		c.usePutParamset = false
	}
	if c.paramsets[channelAddress] == nil {
		c.paramsets[channelAddress] = map[string]any{}
		c.order = append(c.order, channelAddress)
	}
	c.paramsets[channelAddress][parameter] = value
}

// Send flushes the collected writes. Channels are written in insertion
// order of their first parameter; the first failing channel aborts the
// remaining ones.
func (c *CallParameterCollector) Send(ctx context.Context) error {
	for _, channelAddress := range c.order {
		paramset := c.paramsets[channelAddress]
		if len(paramset) == 1 || !c.usePutParamset {
			for parameter, value := range paramset {
				if err := c.client.SetValue(ctx, channelAddress, parameter, value); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.client.PutParamset(ctx, channelAddress, types.ParamsetValues, paramset); err != nil {
			return err
		}
	}
	return nil
}
