package etcd

import (
	"context"

	v3 "go.etcd.io/etcd/client/v3"
)

// WaitForKey blocks until key is present in etcd, or absent when present is
// false. It returns ctx.Err() if ctx ends first.
func WaitForKey(ctx context.Context, client *v3.Client, key string, present bool) error {
	get, err := client.Get(ctx, key, v3.WithCountOnly())
	if err != nil {
		return err
	}
	if (get.Count > 0) == present {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := range client.Watch(ctx, key, v3.WithRev(get.Header.Revision+1)) {
		if err := w.Err(); err != nil {
			return err
		}

		for _, e := range w.Events {
			switch {
			case e.Type == v3.EventTypePut && present:
				return nil
			case e.Type == v3.EventTypeDelete && !present:
				return nil
			}
		}
	}

	return ctx.Err()
}
