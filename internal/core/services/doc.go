// Package services implements the sync client's behaviour on top of the
// driven ports.
//
//   - ConnectionManager: opens the channel and mirrors transport events
//     into the store
//   - SubscriptionRegistry: ref-counted channel subscriptions, re-sent on
//     every reconnect
//   - OptimisticManager: speculative create/update/delete with commit or
//     rollback
//   - HealthMonitor: channel or HTTP probes with retries and edge-triggered
//     transitions
//   - RecoveryController: exponential backoff around a recovery function
//   - Session: wires the above into a driving.SyncSession
//
// Services only import domain, ports, store and logger.
package services
