package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const CartEventSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "cart_event",
	"fields" : [
		{"name": "session_id", "type": "string"},
		{"name": "product_id", "type": "long"},
		{"name": "product_name", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "unit_price", "type": "string"},
		{"name": "delta", "type": "int"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// CartEventV1 is a change of units held for one product in one session.
// UnitPrice is a decimal string to keep cents exact.
type CartEventV1 struct {
	SessionID   string    `avro:"session_id"`
	ProductID   int64     `avro:"product_id"`
	ProductName string    `avro:"product_name"`
	Category    string    `avro:"category"`
	UnitPrice   string    `avro:"unit_price"`
	Delta       int       `avro:"delta"`
	OccurredAt  time.Time `avro:"occurred_at"`
}

// CartEventV1Avro parses [CartEventSchemaTextV1] and panics on failure.
func CartEventV1Avro() avro.Schema {
	return avro.MustParse(CartEventSchemaTextV1)
}
