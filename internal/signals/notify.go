// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package signals

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Start routes SIGCHLD and SIGINT to the controller until ctx is done or
// the returned stop function is called.
func (c *Controller) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, unix.SIGCHLD, unix.SIGINT)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case unix.SIGCHLD:
					c.OnChild()
				case unix.SIGINT:
					c.OnInterrupt()
				}
			}
		}
	}()
	// Children may have exited before the handler was installed.
	c.OnChild()
	return func() {
		signal.Stop(ch)
		cancel()
	}
}
