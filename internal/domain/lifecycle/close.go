package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/infrastructure/monitoring"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

// CloseOne closes an instance: a graceful request, confirmed within timeout,
// then a forced close confirmed within the final timeout. The registry entry
// is removed either way. Closing an instance that is already gone succeeds.
func (s *Service) CloseOne(ctx context.Context, instanceID id.InstanceID, timeout time.Duration) CloseResult {
	if timeout <= 0 {
		timeout = s.opts.GracefulTimeout
	}
	return s.closeOne(ctx, instanceID, timeout, s.opts.FinalTimeout)
}

// ShutdownAll closes every instance concurrently and refuses further
// launches. It completes within roughly graceful+final regardless of the
// number of instances, including launches still in flight.
func (s *Service) ShutdownAll(ctx context.Context, graceful, final time.Duration) ShutdownResult {
	if graceful <= 0 {
		graceful = s.opts.GracefulTimeout
	}
	if final <= 0 {
		final = s.opts.FinalTimeout
	}
	start := time.Now()

	idle := s.gate.close()
	targets := s.registry.List()
	s.logger.Info("Shutting down all instances",
		zap.Int("count", len(targets)),
		zap.Duration("graceful_timeout", graceful),
		zap.Duration("final_timeout", final))

	entries := s.closeDuring(ctx, targets, idle, "", graceful, final)
	for _, inst := range s.registry.List() {
		if !inst.State.IsTerminal() && !containsInstance(entries, inst.ID) {
			entries = append(entries, leftover(inst))
		}
	}
	return s.finishBulk(ScopeAll, "", entries, start)
}

// CloseAllForUser closes every instance owned by user. New launches for the
// user are refused while it runs, and launches already in flight close
// their instance themselves. Every instance of user still registered
// afterwards, and every launch still in flight, is reported in Failed.
func (s *Service) CloseAllForUser(ctx context.Context, user string, timeout time.Duration) ShutdownResult {
	if timeout <= 0 {
		timeout = s.opts.GracefulTimeout
	}
	start := time.Now()

	release, idle := s.gate.sealUser(user)
	defer release()

	targets := s.registry.GetByUser(user)
	s.logger.Info("Closing instances of user",
		zap.String("user", user),
		zap.Int("count", len(targets)),
		zap.Duration("timeout", timeout))

	entries := s.closeDuring(ctx, targets, idle, user, timeout, s.opts.FinalTimeout)
	for _, inst := range s.registry.GetByUser(user) {
		if inst.State.IsTerminal() {
			// Exited on its own and is being removed.
			continue
		}
		if !containsInstance(entries, inst.ID) {
			entries = append(entries, leftover(inst))
			continue
		}
		// Closed sequences always remove their entry; anything left is
		// a failure even if its result said otherwise.
		for i := range entries {
			if entries[i].InstanceID == inst.ID && entries[i].Success {
				entries[i].fail(&CloseTimeoutError{InstanceID: inst.ID, Phase: PhaseForced})
			}
		}
	}
	return s.finishBulk(ScopeUser, user, entries, start)
}

// closeDuring closes targets while the launches behind idle drain. Both
// share the graceful+final budget. Launches of owner (every owner when
// empty) still in flight when it lapses are reported by the instance id
// they were given.
func (s *Service) closeDuring(ctx context.Context, targets []instance.Instance, idle <-chan struct{}, owner string, graceful, final time.Duration) []CloseResult {
	done := make(chan bool, 1)
	go func() { done <- drained(ctx, idle, graceful+final) }()

	entries := s.closeMany(ctx, targets, graceful, final)
	if <-done {
		return entries
	}

	pending := s.gate.pending(owner)
	s.logger.Warn("Launches still in flight after bulk close",
		zap.String("user", owner),
		zap.Int("count", len(pending)))
	for instanceID, launchOwner := range pending {
		if !containsInstance(entries, instanceID) {
			entries = append(entries, pendingLaunch(instanceID, launchOwner))
		}
	}
	return entries
}

func (s *Service) closeMany(ctx context.Context, targets []instance.Instance, graceful, final time.Duration) []CloseResult {
	entries := make([]CloseResult, len(targets))
	var g errgroup.Group
	for i, inst := range targets {
		g.Go(func() error {
			entries[i] = s.closeOne(ctx, inst.ID, graceful, final)
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (s *Service) finishBulk(scope, user string, entries []CloseResult, start time.Time) ShutdownResult {
	res := newShutdownResult(scope, user, entries, time.Since(start))
	if s.metrics != nil {
		s.metrics.RecordShutdown(scope, len(res.Failed), res.Duration)
	}

	fields := []zap.Field{
		zap.String("scope", scope),
		zap.Int("closed", len(entries)-len(res.Failed)),
		zap.Int("forced", res.Forced),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", res.Duration),
	}
	if user != "" {
		fields = append(fields, zap.String("user", user))
	}
	if res.Success {
		s.logger.Info("Bulk close completed", fields...)
	} else {
		failed := make([]string, len(res.Failed))
		for i, f := range res.Failed {
			failed[i] = f.String()
		}
		s.logger.Error("Bulk close left instances running", append(fields, zap.Strings("failed_ids", failed))...)
	}

	t := events.TypeShutdownComplete
	if scope == ScopeUser {
		t = events.TypeUserClosed
	}
	e := events.New(t)
	e.Owner = user
	e.Data = map[string]any{
		"success":  res.Success,
		"closed":   len(entries) - len(res.Failed),
		"forced":   res.Forced,
		"failed":   res.Failed,
		"duration": res.Duration.String(),
	}
	s.publisher.Publish(e)
	return res
}

// closeOne runs at most one close sequence per instance. Concurrent callers
// share it, each waiting no longer than its own budget.
func (s *Service) closeOne(ctx context.Context, instanceID id.InstanceID, graceful, final time.Duration) CloseResult {
	ch := s.closes.DoChan(instanceID.String(), func() (any, error) {
		return s.closeSequence(context.WithoutCancel(ctx), instanceID, graceful, final), nil
	})

	budget := time.NewTimer(graceful + final + 2*s.opts.ConfirmPoll)
	defer budget.Stop()
	select {
	case r := <-ch:
		return r.Val.(CloseResult)
	case <-budget.C:
	case <-ctx.Done():
	}
	res := CloseResult{InstanceID: instanceID, Method: MethodForced}
	res.fail(&CloseTimeoutError{InstanceID: instanceID, Phase: PhaseJoin})
	return res
}

func (s *Service) closeSequence(ctx context.Context, instanceID id.InstanceID, graceful, final time.Duration) CloseResult {
	start := time.Now()
	res := CloseResult{InstanceID: instanceID, Success: true, Method: MethodAlreadyClosed}

	inst, err := s.registry.Get(instanceID)
	if err != nil || inst.State.IsTerminal() {
		return res
	}
	res.Owner = inst.Owner
	res.DefinitionID = inst.Definition.ID
	res.Kind = inst.Kind

	if _, err := s.registry.UpdateState(instanceID, instance.StateClosing); err != nil {
		if errors.Is(err, instance.ErrInstanceNotFound) {
			return res
		}
		s.logger.Error("Cannot close instance", zap.String("instance_id", instanceID.String()), zap.Error(err))
		res.fail(err)
		return res
	}
	if cur, err := s.registry.Get(instanceID); err != nil || cur.State != instance.StateClosing {
		// The monitor reported an exit first.
		return res
	}
	inst.State = instance.StateClosing

	l, ok := s.launchers.For(inst.Kind)
	if !ok {
		res.fail(launcher.Fail(inst.Definition, launcher.ReasonUnsupportedKind, "", nil))
		s.finishClose(inst, nil, &res, start)
		return res
	}

	logger := s.logger.With(zap.String("instance_id", instanceID.String()), zap.String("kind", string(inst.Kind)))
	confirmed := !l.IsStillRunning(ctx, inst)
	if !confirmed {
		res.Method = MethodGraceful
		if l.RequestGracefulClose(ctx, inst) {
			confirmed = s.confirmClosed(ctx, l, inst, graceful)
		} else {
			logger.Debug("No graceful close path")
		}
	}
	if !confirmed {
		res.Method = MethodForced
		logger.Info("Escalating to forced close", zap.Duration("graceful_timeout", graceful))
		if !l.ForceClose(ctx, inst) {
			logger.Warn("Forced close was not delivered")
		}
		confirmed = s.confirmClosed(ctx, l, inst, final)
		if !confirmed {
			res.fail(&CloseTimeoutError{InstanceID: instanceID, Phase: PhaseForced})
		}
	}

	s.finishClose(inst, l, &res, start)
	return res
}

// finishClose records the terminal state, releases the instance and removes
// it from the registry. Unconfirmed closes end Failed but are removed too so
// no stale entry outlives its sequence.
func (s *Service) finishClose(inst instance.Instance, l launcher.Launcher, res *CloseResult, start time.Time) {
	state := instance.StateClosed
	if !res.Success {
		state = instance.StateFailed
	}
	if _, err := s.registry.UpdateState(inst.ID, state); err != nil {
		s.logger.Error("Failed to record close", zap.String("instance_id", inst.ID.String()), zap.Error(err))
	}
	s.monitor.Disarm(inst.ID)
	if l != nil {
		l.Release(inst)
	}
	if _, err := s.registry.Remove(inst.ID); err != nil && !errors.Is(err, instance.ErrInstanceNotFound) {
		s.logger.Error("Failed to remove closed instance", zap.String("instance_id", inst.ID.String()), zap.Error(err))
	}
	s.updateActive()

	res.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordClose(string(inst.Kind), string(res.Method), monitoring.Outcome(res.Success), res.Duration)
	}
	if res.Success {
		s.logger.Info("Instance closed",
			zap.String("instance_id", inst.ID.String()),
			zap.String("method", string(res.Method)),
			zap.Duration("duration", res.Duration))
		s.publish(events.TypeInstanceClosed, inst, string(res.Method))
		return
	}
	s.logger.Error("Instance could not be confirmed closed",
		zap.String("instance_id", inst.ID.String()),
		zap.String("owner", inst.Owner),
		zap.Error(res.Err))
	s.publish(events.TypeCloseFailed, inst, res.Error)
}

// confirmClosed polls liveness until the instance is gone or timeout lapses.
func (s *Service) confirmClosed(ctx context.Context, l launcher.Launcher, inst instance.Instance, timeout time.Duration) bool {
	var exited <-chan struct{}
	if h := inst.Tracking.Process; h != nil {
		exited = h.Done()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(s.opts.ConfirmPoll)
	defer poll.Stop()

	for {
		select {
		case <-exited:
			// A process group can outlive its leader.
			if !l.IsStillRunning(ctx, inst) {
				return true
			}
			exited = nil
		case <-poll.C:
			if !l.IsStillRunning(ctx, inst) {
				return true
			}
		case <-deadline.C:
			return !l.IsStillRunning(ctx, inst)
		case <-ctx.Done():
			return false
		}
	}
}

func containsInstance(entries []CloseResult, instanceID id.InstanceID) bool {
	for _, e := range entries {
		if e.InstanceID == instanceID {
			return true
		}
	}
	return false
}

func pendingLaunch(instanceID id.InstanceID, owner string) CloseResult {
	res := CloseResult{InstanceID: instanceID, Owner: owner, Method: MethodForced}
	res.fail(&CloseTimeoutError{InstanceID: instanceID, Phase: PhaseDrain})
	return res
}

func leftover(inst instance.Instance) CloseResult {
	res := CloseResult{
		InstanceID:   inst.ID,
		Owner:        inst.Owner,
		DefinitionID: inst.Definition.ID,
		Kind:         inst.Kind,
		Method:       MethodGraceful,
	}
	res.fail(&CloseTimeoutError{InstanceID: inst.ID, Phase: PhaseDrain})
	return res
}
