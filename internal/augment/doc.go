// Package augment enriches stored events with categories and descriptions
// obtained from an external text-generation service.
//
// A Provider turns a batch of event records into Patches, each naming an
// event by ID and carrying only a category and/or a description. The
// Augmenter asks the provider for patches with a bounded number of attempts:
// a reply that fails validation is retried, and once the attempts are used up
// the round degrades to no enrichment. A provider that cannot be reached is
// not retried. Either way the pipeline goes on with the events as stored.
package augment
