// Package export publishes chain state changes to Kafka.
//
// An Exporter subscribes to the aggregation store and turns every change
// into a JSON record keyed by chain id. KafkaPublisher delivers records
// synchronously, and EnsureTopic bootstraps the destination topic.
package export
