// Package email delivers transactional email through Postmark. The billing
// notifier uses it to tell users about renewals, failed charges, and
// cancellations; delivery failures are logged by callers and never fatal.
package email
