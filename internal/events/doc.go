// Package events announces committed recordings to downstream consumers over
// Redis pub/sub or an AMQP topic exchange. Publishing is best effort.
package events
