/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package retry implements the join retry/backoff policy: fixed-interval
// retries before the station has ever associated, telescopic doubling once
// it has.
package retry

import "stad/internal/wifi"

// State tracks the mutable retry counters owned by the supervisor. It is
// not safe for concurrent use; the supervisor task is the only mutator.
type State struct {
	JoinRetries     uint
	RetryIntervalMS uint
	IsReconnection  bool
}

// NewState returns a State at its initial values.
func NewState() *State {
	return &State{RetryIntervalMS: wifi.MinRetryMS}
}

// Reset restores the counters to their initial values, as happens on every
// successful join (§4.2, invariant 8 of the supervisor's testable
// properties).
func (s *State) Reset() {
	s.JoinRetries = 0
	s.RetryIntervalMS = wifi.MinRetryMS
	s.IsReconnection = false
}

// Outcome is returned by Next: the delay to sleep before the next attempt,
// and whether the first-join regime has exhausted its attempt budget.
type Outcome struct {
	DelayMS   uint
	Exhausted bool
}

// Next advances the retry state after one failed join attempt and reports
// the delay to apply before the following attempt.
//
// First-join regime (s.IsReconnection == false) waits FixedRetryMS between
// attempts and gives up after wifi.MaxJoinRetries. Reconnection regime
// starts at MinRetryMS and doubles after each sleep (the doubling happens
// here, post-increment, so the first returned delay is MinRetryMS and the
// stored interval for the following call is already 2x), capped at
// MaxRetryMS, with no attempt bound.
func (s *State) Next() Outcome {
	s.JoinRetries++

	if !s.IsReconnection {
		if s.JoinRetries >= wifi.MaxJoinRetries {
			return Outcome{Exhausted: true}
		}
		return Outcome{DelayMS: wifi.FixedRetryMS}
	}

	delay := s.RetryIntervalMS
	next := delay * 2
	if next > wifi.MaxRetryMS {
		next = wifi.MaxRetryMS
	}
	s.RetryIntervalMS = next
	return Outcome{DelayMS: delay}
}
