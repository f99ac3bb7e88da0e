/*
 * COPYRIGHT 2019 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package main

import (
	"testing"
	"time"
)

func TestEnvIntDefaultsWhenUnset(t *testing.T) {
	if got := envInt("STAD_TEST_UNSET_INT", 42); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestEnvIntParsesSetValue(t *testing.T) {
	t.Setenv("STAD_TEST_INT", "7000")
	if got := envInt("STAD_TEST_INT", 0); got != 7000 {
		t.Errorf("got %d, want 7000", got)
	}
}

func TestEnvIntDefaultsOnGarbage(t *testing.T) {
	t.Setenv("STAD_TEST_INT_GARBAGE", "not-a-number")
	if got := envInt("STAD_TEST_INT_GARBAGE", 9); got != 9 {
		t.Errorf("got %d, want 9", got)
	}
}

func TestEnvDurationParsesSetValue(t *testing.T) {
	t.Setenv("STAD_TEST_DURATION", "500ms")
	if got := envDuration("STAD_TEST_DURATION", time.Second); got != 500*time.Millisecond {
		t.Errorf("got %s, want 500ms", got)
	}
}

func TestEnvDurationDefaultsWhenUnset(t *testing.T) {
	if got := envDuration("STAD_TEST_UNSET_DURATION", 3*time.Second); got != 3*time.Second {
		t.Errorf("got %s, want 3s", got)
	}
}
