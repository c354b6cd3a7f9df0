// File path: internal/workflow/coordinator.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/content"
	"github.com/coursekit/coursekit/internal/course"
	"github.com/coursekit/coursekit/internal/session"
)

// Unit addresses one generation task: a material type for one approved week,
// or a session-level document when Week is session.OverviewWeek.
type Unit struct {
	Week     int    `json:"week"`
	Material string `json:"material"`
}

func (u Unit) key(sessionID string) string {
	return fmt.Sprintf("%s/%d/%s", sessionID, u.Week, u.Material)
}

// Coordinator fans generation units out to the content generator with
// bounded parallelism. Requests for the same unit address serialize on a
// per-address lock, so a regeneration overwrites the earlier result exactly
// once. Unit failures are recorded in the session, never returned as errors.
type Coordinator struct {
	store     *session.Store
	generator *content.Generator

	concurrency int
	timeout     time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCoordinator(store *session.Store, generator *content.Generator, concurrency int, timeout time.Duration) *Coordinator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Coordinator{
		store:       store,
		generator:   generator,
		concurrency: concurrency,
		timeout:     timeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) unitLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// releaseSession drops the per-address locks of a removed session so the
// lock map stays bounded by live sessions.
func (c *Coordinator) releaseSession(sessionID string) {
	prefix := sessionID + "/"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.locks {
		if strings.HasPrefix(key, prefix) {
			delete(c.locks, key)
		}
	}
}

// Run processes the units and blocks until every one has a terminal result.
// The returned error reflects only coordination failures (store unreachable,
// context canceled); per-unit outcomes land in the session record.
func (c *Coordinator) Run(ctx context.Context, sessionID string, units []Unit) error {
	if len(units) == 0 {
		return nil
	}
	logger := common.Logger()
	logger.Info("coordinator: running units", "session", sessionID, "units", len(units), "concurrency", c.concurrency)
	var group errgroup.Group
	group.SetLimit(c.concurrency)
	for _, unit := range units {
		unit := unit
		group.Go(func() error {
			return c.runUnit(ctx, sessionID, unit)
		})
	}
	return group.Wait()
}

func (c *Coordinator) runUnit(ctx context.Context, sessionID string, unit Unit) error {
	lock := c.unitLock(unit.key(sessionID))
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now().UTC()
	sess, err := c.store.Update(ctx, sessionID, func(s *session.Session) error {
		bundle := s.Bundle(unit.Week)
		bundle[unit.Material] = session.UnitResult{Status: session.UnitRunning, StartedAt: &started}
		return nil
	})
	if err != nil {
		return err
	}

	var week *course.WeekPlan
	if unit.Week != session.OverviewWeek {
		found, ok := course.FindWeek(sess.ApprovedWeeks, unit.Week)
		if !ok {
			return c.finishUnit(ctx, sessionID, unit, started, session.UnitFailed, nil,
				fmt.Sprintf("week %d is not in the approved plan", unit.Week))
		}
		week = &found
	}

	unitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	result, genErr := c.generator.Generate(unitCtx, sessionID, sess.Module, week, unit.Material)
	cancel()

	switch {
	case genErr == nil:
		ref := &session.ArtifactRef{
			Path:   result.Info.Path,
			Format: "markdown",
			Title:  result.Title,
			Size:   result.Info.Size,
		}
		return c.finishUnit(ctx, sessionID, unit, started, session.UnitCompleted, ref, "")
	case errors.Is(genErr, context.DeadlineExceeded) && ctx.Err() == nil:
		common.Logger().Warn("coordinator: unit timed out", "session", sessionID, "week", unit.Week, "material", unit.Material, "timeout", c.timeout)
		return c.finishUnit(ctx, sessionID, unit, started, session.UnitFailedTimeout, nil,
			fmt.Sprintf("generation exceeded %s", c.timeout))
	default:
		common.Logger().Warn("coordinator: unit failed", "session", sessionID, "week", unit.Week, "material", unit.Material, "error", genErr)
		return c.finishUnit(ctx, sessionID, unit, started, session.UnitFailed, nil, genErr.Error())
	}
}

func (c *Coordinator) finishUnit(ctx context.Context, sessionID string, unit Unit, started time.Time, status string, ref *session.ArtifactRef, errDetail string) error {
	completed := time.Now().UTC()
	_, err := c.store.Update(ctx, sessionID, func(s *session.Session) error {
		bundle := s.Bundle(unit.Week)
		bundle[unit.Material] = session.UnitResult{
			Status:      status,
			Artifact:    ref,
			Error:       errDetail,
			StartedAt:   &started,
			CompletedAt: &completed,
		}
		return nil
	})
	return err
}
