package chat

import "sync/atomic"

// Epoch is a monotonic request epoch. Each async kickoff captures Next();
// before committing its results it checks IsCurrent and discards them on mismatch.
type Epoch struct {
	n atomic.Uint64
}

func (e *Epoch) Next() uint64 {
	return e.n.Add(1)
}

func (e *Epoch) Current() uint64 {
	return e.n.Load()
}

func (e *Epoch) IsCurrent(epoch uint64) bool {
	return e.n.Load() == epoch
}
