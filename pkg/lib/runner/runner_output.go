package runner

import "context"

const subscriptionCapacity = 16

// Output subscribes to both streams: the retained backlog first, then live
// chunks. The channels close once the process has exited.
func (process *Process) Output() (<-chan []byte, <-chan []byte) {
	return process.stdout.Subscribe(subscriptionCapacity), process.stderr.Subscribe(subscriptionCapacity)
}

// OutputContext is Output with channels that also close when ctx ends.
func (process *Process) OutputContext(ctx context.Context) (<-chan []byte, <-chan []byte) {
	return process.stdout.SubscribeContext(ctx, subscriptionCapacity),
		process.stderr.SubscribeContext(ctx, subscriptionCapacity)
}

// Tail returns up to n of the most recent retained bytes of each stream.
func (process *Process) Tail(n int) (stdout, stderr []byte) {
	return process.stdout.Tail(n), process.stderr.Tail(n)
}
