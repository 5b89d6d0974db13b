package types

import "slices"

// BucketDef is the static configuration of a pipeline stage. The engine
// treats bucket definitions as read-only reference data.
type BucketDef struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Title       string `json:"title" yaml:"title" mapstructure:"title"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

// Bucket is a pipeline stage together with the ordered ids of the records it
// holds. Items order is the on-screen card order within the column.
type Bucket struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Items       []string `json:"items"`
}

// Def returns the static definition of the bucket.
func (b Bucket) Def() BucketDef {
	return BucketDef{ID: b.ID, Title: b.Title, Description: b.Description}
}

// Clone returns a copy of the bucket with its own Items slice. A nil Items
// slice is normalized to an empty one so JSON output is always an array.
func (b Bucket) Clone() Bucket {
	items := make([]string, len(b.Items))
	copy(items, b.Items)
	b.Items = items
	return b
}

// IndexOf returns the position of recordID in Items, or -1.
func (b Bucket) IndexOf(recordID string) int {
	return slices.Index(b.Items, recordID)
}

// DefaultBuckets is the stage configuration written to a fresh config.yaml.
var DefaultBuckets = []BucketDef{
	{ID: "nuevo", Title: "Nuevo", Description: "Leads recién ingresados, sin contacto previo"},
	{ID: "contactado", Title: "Contactado", Description: "Primer contacto realizado"},
	{ID: "demo", Title: "Demo agendada", Description: "Demostración de producto programada"},
	{ID: "negociacion", Title: "Negociación", Description: "Propuesta enviada, en negociación"},
	{ID: "venta-nueva", Title: "Venta nueva", Description: "Venta cerrada, pendiente de entrega"},
}
