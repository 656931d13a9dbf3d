package kafka_client

import "github.com/confluentinc/confluent-kafka-go/kafka"

type KafkaConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// ProducerConfig is the librdkafka configuration for the analysis producer.
// Idempotence keeps retried sends from duplicating records.
func (c KafkaConfig) ProducerConfig() *kafka.ConfigMap {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "reviewscope"
	}
	return &kafka.ConfigMap{
		"bootstrap.servers":                     c.Broker,
		"client.id":                             clientID,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
	}
}

func (c KafkaConfig) topic() string {
	if c.Topic == "" {
		return KAFKA_TOPIC_ANALYSES
	}
	return c.Topic
}
