/*
Package resilience provides a consecutive-failure circuit breaker.

# Overview

Launch requests for Android packages must fail fast with a descriptive reason
rather than block on a wedged subsystem. The Android bridge routes every adb
invocation through a Breaker; once the subsystem has failed FailureThreshold
times in a row, calls return ErrCircuitOpen immediately until Cooldown lapses
and a single probe call is let through.

# Usage

	breaker := resilience.New("adb", resilience.Settings{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	})

	out, err := resilience.Call(breaker, func() (string, error) {
		return runADB(ctx, "get-state")
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                                        |
	                                                  [probe failed]
	                                                        v
	                                                       Open
*/
package resilience
