// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqldb

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/thirteenf/storage"
)

// maxConnectDelay caps the doubling delay between connection attempts.
const maxConnectDelay = 30 * time.Second

// connectPolicy bounds how long Open waits for a server that is still
// starting up. SQLite answers the first ping, so only PostgreSQL ever
// sees more than one attempt in practice.
type connectPolicy struct {
	attempts int
	delay    time.Duration
}

// next returns the pause that follows a failed attempt.
func (p connectPolicy) next(current time.Duration) time.Duration {
	if current*2 > maxConnectDelay {
		return maxConnectDelay
	}
	return current * 2
}

// await calls ping until it succeeds, the attempts run out or ctx ends.
// The last ping error is returned unwrapped.
func (p connectPolicy) await(ctx context.Context, logger *slog.Logger, ping func(context.Context) error) error {
	if p.attempts < 1 {
		return storage.ErrInvalidMaxAttempts
	}

	pause := p.delay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := ping(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database reachable", "attempt", attempt)
			}
			return nil
		}
		if attempt == p.attempts {
			return err
		}

		logger.Warn("database not reachable yet", "attempt", attempt, "of", p.attempts, "retry_in", pause, "err", err)
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		pause = p.next(pause)
	}
}
