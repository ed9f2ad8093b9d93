package relay

import (
	"time"

	"github.com/relaybridge/relaybridge/observability"
)

// scheduleProbeLocked starts the two-stage control-liveness probe for cid
// (spec §4.C "Control-liveness probe"). Must be called with v.mu held; it
// cancels any probe already running for cid before starting a new one, so a
// reconnecting client never accumulates duplicate probes.
func (v *v2Session) scheduleProbeLocked(cid string) {
	v.cancelProbeLocked(cid)
	cancel := make(chan struct{})
	v.probes[cid] = cancel
	go v.runProbe(cid, cancel)
}

// cancelProbeLocked stops cid's in-flight probe, if any. Must be called
// with v.mu held.
func (v *v2Session) cancelProbeLocked(cid string) {
	if cancel, ok := v.probes[cid]; ok {
		close(cancel)
		delete(v.probes, cid)
	}
}

// runProbe waits ControlProbeInitialDelay, sends a sync nudge to every
// control socket if the client is still connected and no data socket has
// shown up, then waits ControlProbeSecondDelay and force-closes the control
// sockets under the same conditions. Both conditions are re-checked fresh
// after each wait — spec §9's documented decision not to short-circuit the
// second stage just because a data socket appeared between the two waits
// is intentional: the check happens once, right before acting, not
// continuously.
func (v *v2Session) runProbe(cid string, cancel chan struct{}) {
	timer := time.NewTimer(v.cfg.ControlProbeInitialDelay)
	defer timer.Stop()
	select {
	case <-cancel:
		return
	case <-timer.C:
	}

	v.mu.Lock()
	stillConnected := v.clients[cid] > 0
	hasData := v.ss.byTagOne("server:"+cid) != nil
	if !stillConnected {
		v.obs.ProbeFired(observability.ProbeStageSkippedNoClient)
		v.mu.Unlock()
		return
	}
	if hasData {
		v.mu.Unlock()
		return
	}
	v.sendToControlsLocked(encodeSync(v.connectedClientIDsLocked()))
	v.obs.ProbeFired(observability.ProbeStageSyncNudge)
	v.mu.Unlock()

	timer2 := time.NewTimer(v.cfg.ControlProbeSecondDelay)
	defer timer2.Stop()
	select {
	case <-cancel:
		return
	case <-timer2.C:
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	stillConnected = v.clients[cid] > 0
	hasData = v.ss.byTagOne("server:"+cid) != nil
	if !stillConnected || hasData {
		return
	}
	for _, c := range v.ss.byTagAll("server-control") {
		v.ss.remove(c)
		c.close(1011, "Control unresponsive")
	}
	v.obs.ProbeFired(observability.ProbeStageControlClosed)
	v.obs.Close(observability.CloseReasonControlUnresponsive)
}
