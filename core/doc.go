// Package core defines the domain model, configuration, contracts, and
// error taxonomy shared by the delivery relay components.
//
// The relay receives delivery-status webhooks from the logistics provider,
// authenticates them, and on terminal order states fetches full order
// details for persistence and notification. Every other package in this
// module depends on core and core depends on none of them.
package core
