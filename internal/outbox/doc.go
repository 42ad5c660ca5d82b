// Package outbox implements the transactional outbox for service events.
//
// # Overview
//
// Services record an event in the same transaction that changes the
// aggregate, so an event exists if and only if the change committed. A relay
// later moves pending events to Kafka.
//
// # Components
//
//   - Emitter: builds events from service parameters and request context
//   - KafkaPublisher: writes one event as a Kafka message keyed by aggregate id
//   - Relay: claims pending events, publishes them and records the outcome
//
// # Usage
//
// Emit inside a transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    // ... change the paper ...
//	    return emitter.PaperUploaded(ctx, repository.NewPgOutboxRepository(tx), payload)
//	})
//
// Run the relay:
//
//	relay := outbox.NewRelay(outbox.NewPgTxStore(db), outbox.NewKafkaPublisher(writer), cfg, metrics, logger)
//	go relay.Run(ctx)
package outbox
