package cyre

import (
	"context"

	"github.com/dmitrymomot/cyre/core/channel"
)

type chainDepthKey struct{}

func chainDepth(ctx context.Context) int {
	if d, ok := ctx.Value(chainDepthKey{}).(int); ok {
		return d
	}
	return 0
}

func withChainDepth(ctx context.Context, d int) context.Context {
	return context.WithValue(ctx, chainDepthKey{}, d)
}

// chainIfLink inspects resp's payload for a channel.Link and, if present
// and the recursion-depth bound hasn't been reached, calls the linked
// channel and records its result in resp.Metadata.ChainResult, per the
// documented intra-link chaining contract (§4.6): a handler's return
// value of {id, payload} triggers call(id, payload) after the current
// dispatch completes.
func (b *Bus) chainIfLink(ctx context.Context, resp *channel.Response) {
	link, ok := resp.Payload.(channel.Link)
	if !ok {
		return
	}

	depth := chainDepth(ctx)
	if depth >= b.settings.MaxChainDepth {
		if resp.Metadata == nil {
			resp.Metadata = &channel.Metadata{}
		}
		chainErr := channel.FailErr("intra-link chain depth exceeded", ErrMaxChainDepth)
		resp.Metadata.ChainResult = &chainErr
		return
	}

	chained := b.Call(withChainDepth(ctx, depth+1), link.ID, link.Payload)
	if resp.Metadata == nil {
		resp.Metadata = &channel.Metadata{}
	}
	resp.Metadata.ChainResult = &chained
}
