package types

// Document is a source document as supplied by the document source. The
// engine never mutates it; per-run state lives in rules.Document.
type Document struct {
	ID DocumentID
	// Metadata holds extracted fields; a field may carry several values.
	Metadata map[string][]string
	// Streams holds content streams such as body text, one value per field.
	Streams map[string]string
	// Children are contained documents (attachments, archive members).
	Children []*Document
	// Excluded documents are skipped by CONTAINER targets and child expansion.
	Excluded bool
}

// Values returns the metadata values of field followed by its stream value.
// The second result reports whether either map contains field.
func (d *Document) Values(field string) ([]string, bool) {
	meta, inMeta := d.Metadata[field]
	stream, inStreams := d.Streams[field]
	if !inMeta && !inStreams {
		return nil, false
	}
	values := make([]string, 0, len(meta)+1)
	values = append(values, meta...)
	if inStreams {
		values = append(values, stream)
	}
	return values, true
}
