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
	"os"
	"strconv"
	"time"
)

// envInt and envDuration give this daemon the same "named, typed, defaulted
// tunable" shape as ap_common/apcfg's settings registry, without pulling in
// apcfg's live config-tree client: these read once from the environment at
// startup rather than subscribing to a dynamic property store, since the
// supervisor has no config-tree dependency of its own (§6 only requires
// credentials supplied once by value).
func envInt(name string, defval int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return defval
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defval
	}
	return n
}

func envDuration(name string, defval time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok {
		return defval
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defval
	}
	return d
}

var (
	pollInterval     = envDuration("STAD_DHCP_POLL_INTERVAL", time.Duration(0))
	scanTimeoutMS    = envInt("STAD_SCAN_TIMEOUT_MS", 0)
	shutdownDeadline = envDuration("STAD_SHUTDOWN_DEADLINE", 5*time.Second)
)
