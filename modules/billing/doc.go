// Package billing reconciles subscription state against payment provider
// events and runs the periodic renewal sweep.
//
// The module has two entry points. HandleWebhook ingests provider
// webhooks: deliveries are signature-verified, admitted through a durable
// dedup gate keyed by (event id, provider), and then applied to the local
// subscription row. RunSweep is the cron-triggered reconciliation pass
// that completes period-end cancellations and downgrades and attempts
// renewal charges through the payment gateway.
//
// Status transitions live in pure functions (machine.go); the service
// layer persists their results and delivers notifications. Persistence is
// last-writer-wins because every transition derives from canonical
// provider-reported facts.
package billing
