package chat

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hsannu/connect/core"
)

// Search filters the visible list by query, debounced by SearchDebounce.
// Every call starts a new search generation: results of older searches are dropped.
// An empty query cancels any pending search and restores the full sorted list.
func (c *Controller) Search(query string) {
	q := strings.TrimSpace(query)

	var empty bool
	c.commit(func() {
		c.query = q
		c.searchEpoch.Next()
		if q == "" {
			empty = true
			c.searching = false
			c.visible = c.conversations
			return
		}
		c.searching = true
	})
	if empty {
		c.debounce.Cancel()
		return
	}
	c.scheduleSearch()
}

// scheduleSearch (re)arms the debounce timer for the current query and generation.
func (c *Controller) scheduleSearch() {
	c.mu.Lock()
	if c.closed || c.query == "" {
		c.mu.Unlock()
		return
	}
	gen := c.searchEpoch.Current()
	q := c.query
	c.mu.Unlock()

	c.debounce.Trigger(func() {
		c.goBackground(func(ctx context.Context) {
			c.runSearch(ctx, gen, q)
		})
	})
}

// RunSearch runs a search for query right away (no debounce) and returns the results
// it published. ok is false when a newer search superseded it.
func (c *Controller) RunSearch(ctx context.Context, query string) (results []Conversation, ok bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		c.Search("")
		return c.State().Conversations, true
	}

	var gen uint64
	c.commit(func() {
		c.query = q
		c.searching = true
		gen = c.searchEpoch.Next()
	})
	return c.runSearch(ctx, gen, q)
}

// runSearch scans the conversations in two phases:
//  1. cheap: primary participant name or latest message preview contains q;
//  2. expensive: any cached message contains q, fetching histories that are not cached yet
//     in batches of SearchBatchSize, one batch at a time.
//
// The generation is checked before starting, after every batch and at commit.
func (c *Controller) runSearch(ctx context.Context, gen uint64, q string) ([]Conversation, bool) {
	start := time.Now()
	superseded := func() ([]Conversation, bool) {
		c.rec.ObserveSearch(time.Since(start), 0, true)
		return nil, false
	}

	c.mu.Lock()
	if !c.searchEpoch.IsCurrent(gen) {
		c.mu.Unlock()
		return superseded()
	}
	convs := c.conversations // replaced, never mutated in place
	c.mu.Unlock()

	found := make([]Conversation, 0, len(convs))
	remaining := make([]Conversation, 0, len(convs))
	for _, conv := range convs {
		if matchesSummary(conv, q) {
			found = append(found, conv)
		} else {
			remaining = append(remaining, conv)
		}
	}

	size := c.opts.SearchBatchSize
	for i := 0; i < len(remaining); i += size {
		end := i + size
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[i:end]
		hits := make([]bool, len(batch))

		var g errgroup.Group
		for j, conv := range batch {
			g.Go(func() error {
				msgs, err := c.ensureCached(ctx, conv.ID)
				if err != nil {
					// an unreachable history just does not match
					c.logFailure(ctx, "fetching messages for search", err, true)
					return nil
				}
				hits[j] = anyMessageContains(msgs, q)
				return nil
			})
		}
		_ = g.Wait()

		if !c.searchEpoch.IsCurrent(gen) || ctx.Err() != nil {
			return superseded()
		}
		for j, hit := range hits {
			if hit {
				found = append(found, batch[j])
			}
		}
	}

	results := SortByActivity(found)
	var published bool
	c.commit(func() {
		if !c.searchEpoch.IsCurrent(gen) {
			return
		}
		c.visible = results
		c.searching = false
		published = true
	})
	if !published {
		return superseded()
	}
	c.rec.ObserveSearch(time.Since(start), len(results), false)
	return results, true
}

// ensureCached returns the cached history of a conversation, fetching and caching it first if needed.
func (c *Controller) ensureCached(ctx context.Context, conversationID int) ([]Message, error) {
	if msgs, ok := c.cache.Lookup(conversationID); ok {
		return msgs, nil
	}
	if !c.user.Resolvable() {
		return nil, nil
	}

	start := time.Now()
	msgs, err := c.repo.ListMessages(ctx, conversationID, c.user.ID)
	c.rec.ObserveRequest(OpSearchFetch, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	c.cache.Put(conversationID, msgs)
	return msgs, nil
}

func matchesSummary(conv Conversation, q string) bool {
	return core.ContainsFold(conv.Primary().DisplayName(), q) || core.ContainsFold(conv.Preview(), q)
}

func anyMessageContains(msgs []Message, q string) bool {
	for _, msg := range msgs {
		if core.ContainsFold(msg.Content, q) {
			return true
		}
	}
	return false
}
