// Package source defines the contract between event producers and their subscribers, along with
// adapters for building sources from functions, channels and polling loops.
//
// A Source starts producing on the Scheduler it is given and pushes values into a Sink. The
// returned Handle stops the production; cancelling a Handle twice must be harmless.
package source
