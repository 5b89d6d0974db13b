package types

// Tag is an entry of the static tag registry. Records reference tags by id
// only; label and color are a presentation concern.
type Tag struct {
	ID         string `json:"id" yaml:"id" mapstructure:"id"`
	Label      string `json:"label" yaml:"label" mapstructure:"label"`
	ColorClass string `json:"colorClass" yaml:"color_class" mapstructure:"color_class"`
}

// DefaultTags is the tag registry written to a fresh config.yaml.
var DefaultTags = []Tag{
	{ID: "urgente", Label: "Urgente", ColorClass: "bg-red-100 text-red-800"},
	{ID: "referido", Label: "Referido", ColorClass: "bg-green-100 text-green-800"},
	{ID: "recompra", Label: "Recompra", ColorClass: "bg-blue-100 text-blue-800"},
	{ID: "mayorista", Label: "Mayorista", ColorClass: "bg-purple-100 text-purple-800"},
}

// TagRegistry resolves tag ids to their definitions.
type TagRegistry map[string]Tag

// NewTagRegistry indexes tags by id. Later duplicates win.
func NewTagRegistry(tags []Tag) TagRegistry {
	reg := make(TagRegistry, len(tags))
	for _, t := range tags {
		reg[t.ID] = t
	}
	return reg
}

// Resolve returns the tag for id. Unknown ids resolve to a tag whose label is
// the id itself, so records carrying unregistered tags still render.
func (r TagRegistry) Resolve(id string) (Tag, bool) {
	t, ok := r[id]
	if !ok {
		return Tag{ID: id, Label: id}, false
	}
	return t, true
}
